package catalog

import (
	"github.com/labhacker007/Joti-sub001/internal/redact"
	uni "github.com/labhacker007/Joti-sub001/internal/unicode"
)

func builtinPatterns() []Pattern {
	return []Pattern{
		// --- Prompt injection ---
		{
			ID:            "pi-instruction-override",
			Category:      CategoryPromptInjection,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Instruction override language such as 'ignore previous instructions'",
			Detect:        anyRegex(instructionOverridePatterns...),
		},
		{
			ID:            "pi-indirect-markers",
			Category:      CategoryPromptInjection,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Chat-template or hidden-instruction markers embedded in user data",
			Detect:        anyRegex(indirectInjectionPatterns...),
		},
		{
			ID:            "pi-disable-guardrails",
			Category:      CategoryPromptInjection,
			Severity:      SeverityCritical,
			DefaultAction: ActionReject,
			Description:   "Attempt to switch off safety filters or moderation",
			Detect:        anyRegex(disableGuardrailPatterns...),
		},
		{
			ID:            "pi-prompt-exfiltration",
			Category:      CategoryPromptInjection,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Request to reveal the system prompt or hidden instructions",
			Detect:        anyRegex(promptExfilPatterns...),
		},

		// --- Jailbreak ---
		{
			ID:            "jb-known-persona",
			Category:      CategoryJailbreak,
			Severity:      SeverityCritical,
			DefaultAction: ActionReject,
			Description:   "Known jailbreak persona such as DAN or 'developer mode'",
			Detect:        anyRegex(jailbreakPersonaPatterns...),
		},
		{
			ID:            "jb-unrestricted-roleplay",
			Category:      CategoryJailbreak,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Role-play that asks the model to act without restrictions",
			Detect:        anyRegex(jailbreakUnrestrictedPatterns...),
		},
		{
			ID:            "jb-hypothetical-framing",
			Category:      CategoryJailbreak,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Fictional or hypothetical framing around building malware or weapons",
			Detect:        anyRegex(jailbreakHypotheticalPatterns...),
		},

		// --- Data extraction (output) ---
		{
			ID:            "de-secrets",
			Category:      CategoryDataExtraction,
			Severity:      SeverityCritical,
			DefaultAction: ActionFix,
			Description:   "Credentials or API keys in model output",
			Detect:        detectRedactable(redact.ClassSecret),
			Fix:           fixRedactable(redact.ClassSecret),
		},
		{
			ID:            "de-pii",
			Category:      CategoryDataExtraction,
			Severity:      SeverityHigh,
			DefaultAction: ActionFix,
			Description:   "Personal data (email, phone, SSN, card number) in model output",
			Detect:        detectRedactable(redact.ClassPII),
			Fix:           fixRedactable(redact.ClassPII),
		},
		{
			ID:            "de-system-prompt-leak",
			Category:      CategoryDataExtraction,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Model output discloses its system prompt or operator instructions",
			Detect:        anyRegex(systemPromptLeakPatterns...),
		},

		// --- Hallucination (output) ---
		{
			ID:            "ha-malformed-cve",
			Category:      CategoryHallucination,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "CVE identifier with an impossible format",
			Detect:        anyRegex(malformedCVEPattern),
		},
		{
			ID:            "ha-unverifiable-claim",
			Category:      CategoryHallucination,
			Severity:      SeverityLow,
			DefaultAction: ActionLog,
			Description:   "Model hedges on facts it cannot verify",
			Detect:        anyRegex(unverifiableClaimPatterns...),
		},
		{
			ID:            "ha-placeholder-citation",
			Category:      CategoryHallucination,
			Severity:      SeverityLow,
			DefaultAction: ActionLog,
			Description:   "Placeholder citation or example.com reference",
			Detect:        anyRegex(placeholderCitationPatterns...),
		},

		// --- Token smuggling ---
		{
			ID:            "ts-hidden-characters",
			Category:      CategoryTokenSmuggling,
			Severity:      SeverityCritical,
			DefaultAction: ActionReject,
			Description:   "Zero-width, bidi, tag or control characters that hide content",
			Detect:        detectHiddenCharacters,
			Fix:           uni.Strip,
		},
		{
			ID:            "ts-mixed-script",
			Category:      CategoryTokenSmuggling,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Words mixing Latin with look-alike Cyrillic or Greek letters",
			Detect:        detectMixedScript,
			Fix:           uni.Strip,
		},

		// --- Encoding ---
		{
			ID:            "enc-base64-payload",
			Category:      CategoryEncoding,
			Severity:      SeverityHigh,
			DefaultAction: ActionWarn,
			Description:   "Long base64 run that decodes to readable text",
			Detect:        detectBase64Payload,
		},
		{
			ID:            "enc-hex-escapes",
			Category:      CategoryEncoding,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Sequence of hex escapes that may hide instructions",
			Detect:        anyRegex(hexEscapePattern),
		},
		{
			ID:            "enc-url-encoded-chain",
			Category:      CategoryEncoding,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Long percent-encoded run",
			Detect:        anyRegex(urlEncodedChainPattern),
		},
		{
			ID:            "enc-decode-instruction",
			Category:      CategoryEncoding,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Request to decode an encoded blob and act on it",
			Detect:        anyRegex(decodeInstructionPatterns...),
		},

		// --- Context overflow ---
		{
			ID:            "co-oversized-input",
			Category:      CategoryContextOverflow,
			Severity:      SeverityMedium,
			DefaultAction: ActionReject,
			Description:   "Prompt larger than the context budget",
			Detect:        detectOversized,
		},
		{
			ID:            "co-repetition-flood",
			Category:      CategoryContextOverflow,
			Severity:      SeverityMedium,
			DefaultAction: ActionReject,
			Description:   "Prompt dominated by one repeated token",
			Detect:        detectRepetitionFlood,
		},

		// --- Output manipulation (output) ---
		{
			ID:            "om-script-injection",
			Category:      CategoryOutputManipulation,
			Severity:      SeverityHigh,
			DefaultAction: ActionFix,
			Description:   "Script tags, iframes, javascript: links or event handlers in output",
			Detect:        anyRegex(scriptInjectionPattern),
			Fix:           stripRegex("", scriptInjectionPattern),
		},
		{
			ID:            "om-markdown-exfil",
			Category:      CategoryOutputManipulation,
			Severity:      SeverityHigh,
			DefaultAction: ActionFix,
			Description:   "Markdown image whose URL carries data to a third party",
			Detect:        anyRegex(markdownExfilPattern),
			Fix:           stripRegex("[image removed]", markdownExfilPattern),
		},
		{
			ID:            "om-downstream-injection",
			Category:      CategoryOutputManipulation,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Output carries instruction-override text aimed at a downstream model",
			Detect:        anyRegex(downstreamInjectionPatterns...),
		},

		// --- Chain-of-thought exploit ---
		{
			ID:            "cot-reasoning-hijack",
			Category:      CategoryChainOfThoughtExploit,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Instructions smuggled into the model's reasoning steps",
			Detect:        anyRegex(cotHijackPatterns...),
		},
		{
			ID:            "cot-reveal-reasoning",
			Category:      CategoryChainOfThoughtExploit,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Request to dump hidden reasoning or scratchpad",
			Detect:        anyRegex(cotRevealPatterns...),
		},

		// --- Multi-turn manipulation ---
		{
			ID:            "mt-false-agreement",
			Category:      CategoryMultiTurnManipulation,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "Appeal to an earlier agreement the model never made",
			Detect:        anyRegex(falseAgreementPatterns...),
		},
		{
			ID:            "mt-incremental-escalation",
			Category:      CategoryMultiTurnManipulation,
			Severity:      SeverityLow,
			DefaultAction: ActionLog,
			Description:   "Step-wise push to continue past earlier refusals",
			Detect:        anyRegex(incrementalEscalationPatterns...),
		},

		// --- Payload embedding ---
		{
			ID:            "pe-hidden-comment",
			Category:      CategoryPayloadEmbedding,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "HTML comment carrying instructions",
			Detect:        anyRegex(hiddenCommentPattern),
			Fix:           stripRegex("", hiddenCommentPattern),
		},
		{
			ID:            "pe-data-uri",
			Category:      CategoryPayloadEmbedding,
			Severity:      SeverityHigh,
			DefaultAction: ActionReject,
			Description:   "Executable data: URI embedded in content",
			Detect:        anyRegex(dataURIPattern),
		},
		{
			ID:            "pe-hidden-style",
			Category:      CategoryPayloadEmbedding,
			Severity:      SeverityMedium,
			DefaultAction: ActionWarn,
			Description:   "CSS that hides text from human readers",
			Detect:        anyRegex(hiddenStylePatterns...),
		},
	}
}
