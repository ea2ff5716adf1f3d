package config

const defaultClassifierPrompt = `You are reviewing a still frame sampled from a classroom video recording.
Decide whether a class is in progress in this frame. Indicators include a
teacher addressing students, students seated and attending, visible
instructional material (board, projector, worksheets), or group work in
progress. An empty room, a hallway, or unrelated activity means no class.

Respond with a single JSON object and nothing else:
{"frame": "<frame>", "timestamp": <seconds>, "label": "Yes" or "No", "confidence": <0-100>}`

const defaultReflectionPrompt = `Re-examine the same frame and check your previous answer against this list:
1. Is there at least one person plausibly acting as an instructor?
2. Are there students visibly engaged with instruction or a task?
3. Is instructional material (board, screen, books) in active use?
If your previous answer still holds, repeat it. If not, correct it.

Respond with a single JSON object and nothing else:
{"frame": "<frame>", "timestamp": <seconds>, "label": "Yes" or "No", "confidence": <0-100>}`

const defaultSummarizerPrompt = `You are given per-frame classifications of a classroom video, one per line,
each stating whether a class was in progress at that moment. Write a short
narrative of what the video shows over time, then a final line of the form
"Decision: Yes (N of M frames)" or "Decision: No (N of M frames)" where N is
the number of Yes frames. In case of a tie, respond No.`

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sampling: Sampling{
			FrameInterval: 10,
			RequestDelay:  2,
			Workers:       1,
		},
		Models: Models{
			Classifier: "llama3.2-vision:11b",
			Summarizer: "llama3.2:3b",
		},
		Ollama: Ollama{
			BaseURL: "http://localhost",
			Port:    11434,
		},
		Prompts: Prompts{
			Classifier: defaultClassifierPrompt,
			Reflection: defaultReflectionPrompt,
			Summarizer: defaultSummarizerPrompt,
		},
		Summarizing: Summarizing{
			TokenBudget: 3500,
		},
		Postgres: Postgres{
			Host: "localhost",
			Port: "5432",
		},
	}
}
