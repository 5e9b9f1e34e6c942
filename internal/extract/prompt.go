package extract

import (
	"encoding/json"
	"fmt"
)

// insightPromptTemplate names the exact output schema and the permitted
// categories. The raw analysis response is embedded verbatim.
const insightPromptTemplate = `You are analyzing the structured output of an expense-document OCR service for a single shopping receipt. The full OCR response follows:

%s

Extract the purchase data from it and return ONLY valid JSON in this exact format:
{
  "date": "23-Jun-2024",
  "total": "£45.00",
  "items": [
    {"item": "Milk", "quantity": "1", "price": "£2.50", "category": "food"}
  ],
  "insights": "One or two sentences about this purchase."
}

Every item's category must be exactly one of the following:
- food: groceries, restaurant meals, drinks, and other edible goods.
- electronics: devices, gadgets, chargers, and other consumer tech accessories.
- clothing: garments, footwear, and fashion accessories.
- health: pharmacy items, medication, supplements, and personal care products.
- office supplies: stationery, paper, ink, and other desk consumables.
- home essentials: cleaning products, kitchenware, and general household goods.
- entertainment: books, games, tickets, subscriptions, and other leisure purchases.
- other: anything that does not clearly fit one of the categories above.

Important:
- "date", "total", and "items" must always be present
- "quantity" defaults to "1" when the receipt does not show one
- Keep prices and the total exactly as printed, currency symbol included
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// BuildPrompt embeds the raw analysis response into the extraction
// instruction.
func BuildPrompt(raw json.RawMessage) string {
	return fmt.Sprintf(insightPromptTemplate, raw)
}
