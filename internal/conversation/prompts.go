package conversation

import "strings"

// SlotExtractionSystemPrompt instructs the model to answer with a single
// ISO-8601 datetime in US Eastern time.
const SlotExtractionSystemPrompt = `Ask the user when they would like to book a meeting. You will be given the current date and time and the user's answer.

Output ONLY the date and time they want to book, as an ISO 8601 datetime. No notes, no extra text.

For dates between the second Sunday in March and the first Sunday in November use the EDT offset, for example 2024-04-04T14:30:00-04:00.
For all other dates use the EST offset, for example 2024-01-04T14:30:00-05:00.

If no time of day is given, use 08:00. "Morning" means 08:00, "afternoon" means 13:00 and "evening" means 16:00.

Finally check the weekday of the resulting date. If it is a Saturday add 2 days. If it is a Sunday add 1 day.`

// SlotExtractionUserPrompt is filled with {{now}} and {{user_response}}.
const SlotExtractionUserPrompt = `This is the current date/time: {{now}}

This is when the user would like to book:
{{user_response}}`

// RenderSlotPrompt substitutes the template placeholders.
func RenderSlotPrompt(now, userResponse string) string {
	return strings.NewReplacer(
		"{{now}}", now,
		"{{user_response}}", userResponse,
	).Replace(SlotExtractionUserPrompt)
}
