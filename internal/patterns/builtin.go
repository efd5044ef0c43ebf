// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"encoding/base64"
	"strings"

	"osprey-scan/internal/detector"
)

// placeholderFilters reject the obvious documentation values that show up in
// almost every README and sample config.
func placeholderFilters() []Filter {
	return []Filter{
		{Kind: FilterRegex, Pattern: `(?i)^(x+|0+|1234|abcd|your[_-]?|my[_-]?|insert[_-]?|replace[_-]?)`},
		{Kind: FilterKeyword, Keyword: "example"},
		{Kind: FilterKeyword, Keyword: "placeholder"},
	}
}

// looksLikeJWT verifies the three-part structure of a JWT and that the header
// segment is decodable base64url.
func looksLikeJWT(value string) bool {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(parts[0])
	return err == nil
}

// hasDigitAndLetter rejects single-class strings that match broad token
// shapes but carry no real character mix.
func hasDigitAndLetter(value string) bool {
	var digit, letter bool
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		}
	}
	return digit && letter
}

// BuiltinDefinitions returns the default pattern catalog: well-known secret
// token shapes, vulnerability indicators, and risky configuration idioms.
func BuiltinDefinitions() []Definition {
	return []Definition{
		// --- secrets ---
		{
			ID:         "aws-access-key",
			Name:       "AWS Access Key ID",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `\b(AKIA[0-9A-Z]{16})\b`,
			Confidence: 0.9,
			MinLength:  20,
			Validator:  hasDigitAndLetter,
		},
		{
			ID:           "aws-secret-key",
			Name:         "AWS Secret Access Key",
			Category:     detector.CategorySecrets,
			Severity:     detector.SeverityCritical,
			Regex:        `(?i)aws.{0,20}?["']([0-9a-zA-Z/+]{40})["']`,
			ExtractGroup: 1,
			Confidence:   0.85,
			MinLength:    40,
			Filters:      placeholderFilters(),
		},
		{
			ID:         "github-token",
			Name:       "GitHub Token",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `\b(gh[pousr]_[A-Za-z0-9]{36,255})\b`,
			Confidence: 0.9,
			MinLength:  40,
		},
		{
			ID:         "gitlab-token",
			Name:       "GitLab Personal Access Token",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `\b(glpat-[A-Za-z0-9_\-]{20})\b`,
			Confidence: 0.9,
		},
		{
			ID:         "stripe-key",
			Name:       "Stripe API Key",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `\b((?:sk|pk|rk)_(?:live|test)_[0-9a-zA-Z]{24,99})\b`,
			Confidence: 0.9,
			Validator:  func(v string) bool { return !strings.Contains(v, "_test_") },
		},
		{
			ID:         "google-api-key",
			Name:       "Google API Key",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `\b(AIza[0-9A-Za-z_\-]{35})\b`,
			Confidence: 0.9,
			MinLength:  39,
		},
		{
			ID:         "slack-token",
			Name:       "Slack Token",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `\b(xox[baprs]-[0-9A-Za-z\-]{10,250})\b`,
			Confidence: 0.85,
		},
		{
			ID:         "slack-webhook",
			Name:       "Slack Webhook URL",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `https://hooks\.slack\.com/services/T[A-Za-z0-9_]+/B[A-Za-z0-9_]+/[A-Za-z0-9_]+`,
			Confidence: 0.9,
		},
		{
			ID:         "openai-api-key",
			Name:       "OpenAI API Key",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `\b(sk-(?:proj-)?[A-Za-z0-9_\-]{20,})\b`,
			Confidence: 0.8,
			MinLength:  23,
			Filters:    placeholderFilters(),
		},
		{
			ID:         "anthropic-api-key",
			Name:       "Anthropic API Key",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `\b(sk-ant-[A-Za-z0-9_\-]{20,})\b`,
			Confidence: 0.9,
		},
		{
			ID:         "jwt",
			Name:       "JSON Web Token",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityMedium,
			Regex:      `\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`,
			Confidence: 0.8,
			Validator:  looksLikeJWT,
		},
		{
			ID:         "private-key-block",
			Name:       "Private Key Block",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityCritical,
			Regex:      `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Confidence: 0.95,
		},
		{
			ID:         "npm-token",
			Name:       "npm Access Token",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `\b(npm_[A-Za-z0-9]{36})\b`,
			Confidence: 0.9,
		},
		{
			ID:         "sendgrid-api-key",
			Name:       "SendGrid API Key",
			Category:   detector.CategorySecrets,
			Severity:   detector.SeverityHigh,
			Regex:      `\b(SG\.[A-Za-z0-9_\-]{22}\.[A-Za-z0-9_\-]{43})\b`,
			Confidence: 0.9,
		},
		{
			ID:           "heroku-api-key",
			Name:         "Heroku API Key",
			Category:     detector.CategorySecrets,
			Severity:     detector.SeverityHigh,
			Regex:        `(?i)heroku.{0,20}?\b([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`,
			ExtractGroup: 1,
			Confidence:   0.75,
		},
		{
			ID:           "generic-api-key",
			Name:         "Generic API Key Assignment",
			Category:     detector.CategorySecrets,
			Severity:     detector.SeverityMedium,
			Regex:        `(?i)\b(?:api[_-]?key|auth[_-]?token|access[_-]?token|client[_-]?secret)["']?\s*[:=]\s*["']([A-Za-z0-9_\-/+=]{16,80})["']`,
			ExtractGroup: 1,
			Confidence:   0.7,
			MinLength:    16,
			Filters:      placeholderFilters(),
		},
		{
			ID:           "generic-password",
			Name:         "Hardcoded Password",
			Category:     detector.CategorySecrets,
			Severity:     detector.SeverityMedium,
			Regex:        `(?i)\b(?:password|passwd|pwd)["']?\s*[:=]\s*["']([^"']{8,64})["']`,
			ExtractGroup: 1,
			Confidence:   0.6,
			MinLength:    8,
			Filters: append(placeholderFilters(),
				Filter{Kind: FilterRegex, Pattern: `(?i)^(password|changeme|secret|admin|letmein|qwerty)$`},
			),
		},
		{
			ID:           "db-connection-uri",
			Name:         "Database URI With Credentials",
			Category:     detector.CategorySecrets,
			Severity:     detector.SeverityHigh,
			Regex:        `\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:@/]+:([^\s@/]+)@[^\s/]+`,
			ExtractGroup: 1,
			Confidence:   0.85,
			Filters: []Filter{
				{Kind: FilterRegex, Pattern: `(?i)^(user(name)?|pass(word)?|\$\{.*\}|%s)$`},
			},
		},

		// --- vulnerabilities ---
		{
			ID:         "eval-user-input",
			Name:       "Dynamic Code Evaluation",
			Category:   detector.CategoryVulnerability,
			Severity:   detector.SeverityHigh,
			Regex:      `\beval\s*\(\s*[A-Za-z_$][\w$.]*\s*\)`,
			Confidence: 0.6,
		},
		{
			ID:         "document-write",
			Name:       "Unsafe document.write",
			Category:   detector.CategoryVulnerability,
			Severity:   detector.SeverityMedium,
			Regex:      `document\.write(?:ln)?\s*\(`,
			Confidence: 0.55,
		},
		{
			ID:         "inner-html-assignment",
			Name:       "innerHTML Assignment",
			Category:   detector.CategoryVulnerability,
			Severity:   detector.SeverityMedium,
			Regex:      `\.innerHTML\s*=\s*[^'"\s]`,
			Confidence: 0.55,
		},
		{
			ID:         "insecure-http-url",
			Name:       "Insecure HTTP Resource",
			Category:   detector.CategoryVulnerability,
			Severity:   detector.SeverityLow,
			Regex:      `\bhttp://[a-zA-Z0-9.\-]+(?::\d+)?(?:/[^\s"'<>]*)?`,
			Confidence: 0.5,
			Filters: []Filter{
				{Kind: FilterRegex, Pattern: `(?i)^http://(localhost|127\.0\.0\.1|schemas?\.|www\.w3\.org|xmlns)`},
			},
		},
		{
			ID:         "sql-string-concat",
			Name:       "SQL Built By Concatenation",
			Category:   detector.CategoryVulnerability,
			Severity:   detector.SeverityHigh,
			Regex:      `(?i)["'](?:SELECT|INSERT|UPDATE|DELETE)\b[^"']*["']\s*\+\s*[A-Za-z_$]`,
			Confidence: 0.6,
		},

		// --- configurations ---
		{
			ID:         "debug-enabled",
			Name:       "Debug Mode Enabled",
			Category:   detector.CategoryConfigurations,
			Severity:   detector.SeverityLow,
			Regex:      `(?i)\bdebug["']?\s*[:=]\s*["']?true\b`,
			Confidence: 0.6,
		},
		{
			ID:         "cors-wildcard",
			Name:       "Wildcard CORS Origin",
			Category:   detector.CategoryConfigurations,
			Severity:   detector.SeverityMedium,
			Regex:      `(?i)access-control-allow-origin["']?\s*[:=]\s*["']\*["']`,
			Confidence: 0.8,
		},
		{
			ID:           "env-file-leak",
			Name:         "Dotenv Variable Exposure",
			Category:     detector.CategoryConfigurations,
			Severity:     detector.SeverityMedium,
			Regex:        `(?m)^\s*([A-Z][A-Z0-9_]{2,})\s*=\s*\S+`,
			ExtractGroup: 1,
			Confidence:   0.5,
			Filters: []Filter{
				{Kind: FilterRegex, Pattern: `(?i)^(PATH|HOME|LANG|TERM|SHELL|USER|PWD|NODE_ENV)$`},
			},
		},
		{
			ID:         "internal-ip",
			Name:       "Internal IP Address",
			Category:   detector.CategoryConfigurations,
			Severity:   detector.SeverityLow,
			Regex:      `\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3})\b`,
			Confidence: 0.55,
		},
	}
}

// NewBuiltinRegistry constructs a registry preloaded with the default
// catalog. The built-in definitions are expected to always validate; an
// error here indicates a programming mistake, so it propagates.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.RegisterAll(BuiltinDefinitions()); err != nil {
		return nil, err
	}
	return r, nil
}
