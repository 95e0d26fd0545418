package category

// Category describes one entry of the fixed category list the frontend
// renders; icon names follow the lucide icon set.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

var All = []Category{
	{ID: "food-dining", Name: "Food & Dining", Icon: "UtensilsCrossed", Color: "#ef4444", Type: "expense"},
	{ID: "transportation", Name: "Transportation", Icon: "Car", Color: "#f59e0b", Type: "expense"},
	{ID: "shopping", Name: "Shopping", Icon: "ShoppingBag", Color: "#ec4899", Type: "expense"},
	{ID: "entertainment", Name: "Entertainment", Icon: "Film", Color: "#8b5cf6", Type: "expense"},
	{ID: "bills-utilities", Name: "Bills & Utilities", Icon: "Zap", Color: "#06b6d4", Type: "expense"},
	{ID: "healthcare", Name: "Healthcare", Icon: "HeartPulse", Color: "#10b981", Type: "expense"},
	{ID: "education", Name: "Education", Icon: "GraduationCap", Color: "#3b82f6", Type: "expense"},
	{ID: "salary", Name: "Salary", Icon: "Wallet", Color: "#22c55e", Type: "income"},
	{ID: "other", Name: "Other", Icon: "Package", Color: "#6b7280", Type: "expense"},
}
