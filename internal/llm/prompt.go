package llm

const SystemPrompt = "You are a helpful Grafana dashboard assistant that can analyze and modify dashboard configurations."
