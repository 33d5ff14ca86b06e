package llm

import (
	"encoding/json"
	"fmt"

	"github.com/Raivel16/gestor-tareas/internal/domain"
)

type promptTask struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	Priority    string  `json:"priority"`
	Tag         string  `json:"tag"`
}

const orderPromptTemplate = `You are an expert study and task planning assistant. Analyze the following tasks and suggest the best order to work on them.

TASKS:
%s

CRITERIA:
1. Urgency (due date)
2. Priority (high > medium > low)
3. Complexity (title/description)

RESPONSE INSTRUCTIONS:
- Return ONLY a valid JSON object.
- Do NOT wrap it in markdown code blocks.
- Do NOT write any text before or after the JSON.
- The JSON must have exactly this shape:
{
  "order": [1, 3, 2],
  "explanation": "First 'Fix login' (ID 1) because it is due soonest. Then 'Design database' (ID 3) for its complexity and high priority. Finally 'Update docs' (ID 2)."
}

IMPORTANT:
- "order" must contain every task ID listed above exactly once.
- In "explanation", refer to tasks by their TITLES so the user understands the order.
- Keep the explanation short.`

// BuildOrderPrompt embeds the tasks as JSON in the ordering instructions.
func BuildOrderPrompt(tasks []domain.Task) (string, error) {
	items := make([]promptTask, 0, len(tasks))
	for _, t := range tasks {
		item := promptTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    string(t.Priority),
			Tag:         t.Tag,
		}
		if t.DueDate != nil {
			d := t.DueDate.Format(domain.DateLayout)
			item.DueDate = &d
		}
		items = append(items, item)
	}

	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return fmt.Sprintf(orderPromptTemplate, payload), nil
}
