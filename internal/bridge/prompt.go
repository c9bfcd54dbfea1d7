package bridge

import "fmt"

const promptTemplate = `You are a Grafana dashboard assistant with the ability to modify dashboards. You have access to information about the entire dashboard:

%s

You can suggest and make changes to the dashboard based on the user's request. When modifying the dashboard, consider:
1. Panel layouts and organization
2. Panel titles and descriptions
3. Dashboard variables and templates
4. Panel queries and visualizations

User Question: %s

Please provide a helpful response based on the dashboard context above. If changes are needed, explain what changes you have made and why.`

// BuildPrompt wraps the user's question in the dashboard context.
func BuildPrompt(text, dashboardInfo string) string {
	return fmt.Sprintf(promptTemplate, dashboardInfo, text)
}
