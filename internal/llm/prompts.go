package llm

import "fmt"

// FilterPrompt asks the model to keep only orderable dish names from raw OCR text.
func FilterPrompt(ocrText string) string {
	return fmt.Sprintf(`Analyze the following text extracted from a restaurant menu. Your task:
1) Extract only the dish/item names customers can order.
2) Exclude section headers, descriptions, prices, codes, general info, etc.
3) Return each dish name on its own line, no preamble.
Menu Text:
---
%s
---
Dish Names:`, ocrText)
}

// QueryPrompt asks the model for image search keywords that find a plated photo of the dish.
func QueryPrompt(dish string) string {
	return fmt.Sprintf(`Given the menu item name "%s", generate an effective Google image search query as a series of keywords.
The query should be designed to find a high-quality photograph of this dish as a prepared meal, ready to be served and eaten.
Focus on terms that emphasize the final plated dish. Example keywords: plated, dish, meal, food photography, restaurant style.
Return only the keywords, separated by spaces. Do not enclose the entire query in quotes or add any other explanations.
Menu Item: "%s"
Effective Image Search Keywords:`, dish, dish)
}
