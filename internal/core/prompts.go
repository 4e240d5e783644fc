package core

import (
	"strings"

	"medfollow/pkg"
)

const (
	// SystemPrompt casts the assistant as a follow-up nurse that never
	// diagnoses.
	SystemPrompt = `You are MedFollow AI, a compassionate and knowledgeable hospital patient follow-up assistant.

Your role:
- Help patients recovering from surgery or illness understand and manage their symptoms
- Provide clear, medically accurate, and comforting guidance
- Always remind patients to consult their doctor for serious concerns
- Never diagnose; only provide general health guidance and post-care support
- In emergencies, always recommend calling 108 (India) immediately

Tone: Warm, professional, reassuring, like a caring nurse
Format: Keep responses concise (3-5 sentences). Use plain language, no jargon.
Language: ALWAYS reply in the EXACT SAME LANGUAGE the patient writes in.
  - If they write in Hindi, reply fully in Hindi
  - If they write in Telugu, reply fully in Telugu
  - If they write in English, reply in English

Safety: Never suggest stopping prescribed medications. Always err on the side of caution.`
)

// BuildSystemPrompt appends the patient context block to SystemPrompt.
// Empty fields are left out.
func BuildSystemPrompt(pc pkg.PatientContext) string {
	var lines []string
	if pc.Name != "" {
		lines = append(lines, "Patient name: "+pc.Name)
	}
	if pc.ProcedureType != "" {
		lines = append(lines, "Surgery/procedure: "+pc.ProcedureType)
	}
	if pc.Language != "" {
		lines = append(lines, "Preferred language: "+string(pc.Language)+" (reply in this language)")
	}
	if len(lines) == 0 {
		return SystemPrompt
	}
	return SystemPrompt + "\n\nPatient context:\n" + strings.Join(lines, "\n")
}
