package assistant

import "fmt"

// systemPrompt frames the model as an interview coach and caps answer
// length so suggestions stay readable in real time.
const systemPrompt = "You are an expert interview coach providing concise, helpful responses to interview questions. Keep responses under 150 words and focus on actionable advice. Format your answers clearly."

// buildInterviewPrompt renders the job-specific request for one batch of
// spoken text.
func buildInterviewPrompt(jobType, spokenText string) string {
	return fmt.Sprintf(`I need an assistant for a %[1]s job interview.

Context: This is a real-time interview assistance system. The user is in an interview for a %[1]s position.

Spoken text from interview: %[2]q

Please provide:
1. A concise, professional response suggestion for the candidate
2. Key points they should mention for this %[1]s role
3. Any technical terms or concepts relevant to %[1]s they might want to include

Keep the response brief, actionable, and specifically tailored for a %[1]s interview. Focus on helping the candidate give a strong, relevant answer.`, jobType, spokenText)
}
