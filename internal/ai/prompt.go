package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// billAnalysisPrompt is the shared prompt used by all providers for analyzing a bill photograph
const billAnalysisPrompt = `You are BillBuster, an expert bill analyst. Analyze this bill image and identify overcharges, hidden fees, errors, and savings opportunities.

Return a JSON object with this exact structure:
{
  "provider": "Company name on the bill",
  "category": "phone|internet|cable|electric|gas|water|insurance|medical|subscription|other",
  "totalAmount": <total in cents, e.g. 15099 for $150.99>,
  "billDate": "YYYY-MM-DD",
  "lineItems": [
    {
      "description": "Line item description",
      "amount": <amount in cents>,
      "flagged": true/false,
      "flagReason": "Why this is flagged (only if flagged)",
      "typicalAmount": <typical amount in cents for this charge, if known>,
      "confidence": 0.0-1.0
    }
  ],
  "findings": [
    {
      "type": "overcharge|hidden_fee|error|rate_increase|unnecessary_service|optimization",
      "severity": "low|medium|high|critical",
      "title": "Short title",
      "description": "Detailed explanation of the issue and why it matters",
      "estimatedSavings": <potential savings in cents>,
      "confidence": 0.0-1.0
    }
  ],
  "summary": "2-3 sentence overview of the bill analysis",
  "overallRiskScore": 0-100,
  "totalIdentifiedSavings": <total potential savings in cents>
}

Guidelines:
- Be thorough: check every line item
- Flag charges that seem higher than industry averages
- Look for duplicate charges, regulatory recovery fees, admin fees
- Identify promotional rates that have expired
- Note any charges for services that may not be needed
- Be conservative with confidence scores
- All monetary amounts must be in cents (integer)`

// negotiationScriptPrompt is filled in with the bill provider, the findings and the total savings
const negotiationScriptPrompt = `You are BillBuster, an expert negotiation coach. Generate a phone negotiation script for calling the bill provider.

Provider: {provider}
Issues found: {findings}
Total potential savings: {totalSavings}

Return a JSON object with this exact structure:
{
  "sections": [
    {
      "title": "Opening",
      "content": "Exact words to say when calling..."
    },
    {
      "title": "State Your Case",
      "content": "How to present the issues found..."
    },
    {
      "title": "Negotiate",
      "content": "Negotiation tactics and responses..."
    },
    {
      "title": "Close the Deal",
      "content": "How to lock in the savings..."
    },
    {
      "title": "If They Say No",
      "content": "Escalation tactics..."
    }
  ],
  "keyPoints": [
    "Key point 1 to remember",
    "Key point 2 to remember"
  ]
}

Guidelines:
- Be specific to the provider and issues found
- Include exact phrases and talking points
- Mention competitor rates when relevant
- Include retention department escalation tips
- Keep tone firm but polite
- Reference specific charges by name and amount`

// jsonOnlySuffix is appended for backends without a JSON response mode
const jsonOnlySuffix = "\n\nRespond with only the JSON object, no other text."

// FormatCents renders an amount in cents as a dollar string, e.g. 15099 -> "$150.99"
func FormatCents(cents int) string {
	return "$" + decimal.New(int64(cents), -2).StringFixed(2)
}

// renderScriptPrompt fills each placeholder of the negotiation prompt once
func renderScriptPrompt(providerName string, findings []Finding, totalSavings int) (string, error) {
	if findings == nil {
		findings = []Finding{}
	}
	findingsJSON, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling findings: %w", err)
	}

	prompt := strings.Replace(negotiationScriptPrompt, "{provider}", providerName, 1)
	prompt = strings.Replace(prompt, "{findings}", string(findingsJSON), 1)
	prompt = strings.Replace(prompt, "{totalSavings}", FormatCents(totalSavings), 1)
	return prompt, nil
}
