// Guardrails is a multilingual content-moderation decision service.
//
// It scores text with a chain of moderation engines, fuses their verdicts
// under a per-language cultural profile, and decides whether to allow, warn
// or block. Blocked or warned text can be mitigated by masking PII and
// softening violent phrasing.
//
// Usage:
//
//	# Start the HTTP service
//	guardrails serve --config guardrails.yaml
//
//	# Moderate a single text
//	guardrails moderate "text to check" --language fr
//
//	# Moderate a file, one text per line, failing CI on any block
//	guardrails moderate --file prompts.txt --format jsonl --fail-on block
//
//	# Mask PII in model output
//	echo "mail me at bob@example.com" | guardrails mitigate
//
//	# Check a configuration file
//	guardrails validate --config guardrails.yaml
package main

func main() {
	Execute()
}
