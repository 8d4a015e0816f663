package intake

const chatSystemPrompt = `You are Clinic Companion, a medical education assistant.
Rules:
- You are not a doctor and cannot diagnose.
- Ask concise follow-up questions if details are missing.
- Focus on practical next steps and safety.
- If severe symptoms appear, advise urgent care.
End every answer with: "This is educational, not medical advice."`

const caseExtractPrompt = `Extract medical intake into JSON only. ` +
	`Return an object with exact keys: ` +
	`symptoms(string[]), duration(string), severity(string), feverC(number|null), ` +
	`redFlags(string[]), meds(string[]), allergies(string[]), notes(string). ` +
	`Use null for unknown fever, and empty arrays/strings for unknown fields.`

const summaryPrompt = `Summarize this intake chat in <=120 words with symptoms, ` +
	`timeline, red flags, and open questions.`

const soapPrompt = `Write a concise educational SOAP note with sections Subjective, ` +
	`Objective, Assessment, Plan, and one-line safety disclaimer. `

const (
	styleClinician       = "Use concise clinician tone."
	stylePatientFriendly = "Use patient-friendly plain language."

	chatStyleClinician       = "Use concise clinician language."
	chatStylePatientFriendly = "Use plain patient-friendly language."
)
