package validation

import (
	"strings"
	"testing"
)

func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"non-empty", "bonjour", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"tabs only", "\t\t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			result := v.Required("field", tt.value)
			if result != tt.isValid {
				t.Errorf("Required() = %v, want %v", result, tt.isValid)
			}
			if !tt.isValid && len(v.Errors()) == 0 {
				t.Error("expected errors, got none")
			}
		})
	}
}

func TestValidator_MaxLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		max     int
		isValid bool
	}{
		{"under limit", "hello", 10, true},
		{"at limit", "hello", 5, true},
		{"over limit", "hello world", 5, false},
		{"accents count as one", "éèàçô", 5, true},
		{"accents over limit", "prêt à acheter", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			if got := v.MaxLength("field", tt.value, tt.max); got != tt.isValid {
				t.Errorf("MaxLength() = %v, want %v", got, tt.isValid)
			}
		})
	}
}

func TestValidator_PhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"senegal international", "+221781362728", true},
		{"senegal with spaces", "+221 78 136 27 28", true},
		{"senegal local", "78 136 27 28", true},
		{"with dots", "78.136.27.28", true},
		{"empty allowed", "", true},
		{"too short", "+2217", false},
		{"letters invalid", "+221abc2728", false},
		{"too long", "+123456789012345678", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			if got := v.PhoneNumber("phone", tt.value); got != tt.isValid {
				t.Errorf("PhoneNumber(%q) = %v, want %v", tt.value, got, tt.isValid)
			}
		})
	}
}

func TestValidator_Email(t *testing.T) {
	tests := []struct {
		value   string
		isValid bool
	}{
		{"awa@example.sn", true},
		{"", true},
		{"awa", false},
		{"Awa <awa@example.sn>", false},
		{"awa@", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := New()
			if got := v.Email("email", tt.value); got != tt.isValid {
				t.Errorf("Email(%q) = %v, want %v", tt.value, got, tt.isValid)
			}
		})
	}
}

func TestValidator_UUID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"valid lowercase", "550e8400-e29b-41d4-a716-446655440000", true},
		{"valid uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"empty allowed", "", true},
		{"missing dashes", "550e8400e29b41d4a716446655440000", false},
		{"invalid chars", "550e8400-e29b-41d4-a716-44665544000g", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			if got := v.UUID("id", tt.value); got != tt.isValid {
				t.Errorf("UUID(%q) = %v, want %v", tt.value, got, tt.isValid)
			}
		})
	}
}

func TestValidator_Path(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		isValid bool
	}{
		{"root", "/", true},
		{"business page", "/business/glow-shop", true},
		{"with query", "/business?category=mode", true},
		{"empty allowed", "", true},
		{"absolute url", "https://tekkistudio.com/", false},
		{"protocol relative", "//evil.example/", false},
		{"relative", "business", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			if got := v.Path("url", tt.value); got != tt.isValid {
				t.Errorf("Path(%q) = %v, want %v", tt.value, got, tt.isValid)
			}
		})
	}
}

func TestValidator_OneOf(t *testing.T) {
	allowed := []string{"contact", "acquire"}

	v := New()
	if !v.OneOf("action", "contact", allowed) {
		t.Error("contact should be allowed")
	}
	if !v.OneOf("action", "", allowed) {
		t.Error("empty should be allowed")
	}
	if v.OneOf("action", "pay", allowed) {
		t.Error("pay should be rejected")
	}
	if len(v.Errors()) != 1 || v.Errors()[0].Code != CodeInvalidValue {
		t.Errorf("Errors() = %v", v.Errors())
	}
}

func TestValidator_NoScriptTags(t *testing.T) {
	tests := []struct {
		value   string
		isValid bool
	}{
		{"Bonjour, je veux acheter", true},
		{"<script>alert(1)</script>", false},
		{"<SCRIPT src=x>", false},
		{"javascript:alert(1)", false},
	}

	for _, tt := range tests {
		v := New()
		if got := v.NoScriptTags("message", tt.value); got != tt.isValid {
			t.Errorf("NoScriptTags(%q) = %v, want %v", tt.value, got, tt.isValid)
		}
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "name", Message: "is required", Code: CodeRequired},
		{Field: "email", Message: "is invalid", Code: CodeInvalidFormat},
	}

	result := errs.Error()
	if !strings.Contains(result, "name") || !strings.Contains(result, "email") {
		t.Errorf("Error() should contain field names, got: %s", result)
	}
	if (ValidationErrors{}).Error() != "validation failed" {
		t.Error("empty errors should have a generic message")
	}
}

func TestValidationErrors_FieldErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "name", Message: "is required"},
		{Field: "email", Message: "is invalid"},
		{Field: "name", Message: "is too long"},
	}

	if n := len(errs.FieldErrors("name")); n != 2 {
		t.Errorf("FieldErrors(name) = %d errors, want 2", n)
	}
}

func TestChatInputValidator(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		v := NewChatInputValidator(20)
		v.ValidateContent("Bonjour")
		v.ValidatePage("Accueil", "/")
		if !v.IsValid() {
			t.Errorf("unexpected errors: %v", v.Errors())
		}
	})

	t.Run("blank content", func(t *testing.T) {
		v := NewChatInputValidator(20)
		v.ValidateContent("  ")
		if len(v.Errors().FieldErrors("content")) != 1 {
			t.Errorf("Errors() = %v", v.Errors())
		}
	})

	t.Run("content too long", func(t *testing.T) {
		v := NewChatInputValidator(5)
		v.ValidateContent("beaucoup trop long")
		if v.IsValid() || v.Errors()[0].Code != CodeTooLong {
			t.Errorf("Errors() = %v", v.Errors())
		}
	})

	t.Run("url must be a path", func(t *testing.T) {
		v := NewChatInputValidator(0)
		v.ValidatePage("Business", "http://x/business")
		if len(v.Errors().FieldErrors("context.url")) != 1 {
			t.Errorf("Errors() = %v", v.Errors())
		}
	})

	t.Run("action or label", func(t *testing.T) {
		known := []string{"contact", "acquire"}

		v := NewChatInputValidator(0)
		v.ValidateAction("", "Contacter le support", known)
		if !v.IsValid() {
			t.Errorf("label only should pass: %v", v.Errors())
		}

		v = NewChatInputValidator(0)
		v.ValidateAction("", "", known)
		if v.IsValid() {
			t.Error("expected error for missing action and label")
		}

		v = NewChatInputValidator(0)
		v.ValidateAction("pay_now", "", known)
		if v.IsValid() {
			t.Error("expected error for unknown action")
		}
	})
}

func TestLeadValidator_ValidateAll(t *testing.T) {
	t.Run("valid lead", func(t *testing.T) {
		errs := NewLeadValidator().ValidateAll(
			"550e8400-e29b-41d4-a716-446655440000",
			"Awa Diop", "awa@example.sn", "+221 78 136 27 28", "500 000 FCFA", "Je suis intéressée",
		)
		if errs.HasErrors() {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		errs := NewLeadValidator().ValidateAll("", "", "", "", "", "")
		for _, field := range []string{"business_id", "name", "email", "phone"} {
			if len(errs.FieldErrors(field)) != 1 {
				t.Errorf("expected one error for %s, got %v", field, errs)
			}
		}
		if len(errs.FieldErrors("message")) != 0 {
			t.Error("message is optional")
		}
	})

	t.Run("malformed fields", func(t *testing.T) {
		errs := NewLeadValidator().ValidateAll("nope", "Awa", "awa", "abc", "", "<script>")
		for _, field := range []string{"business_id", "email", "phone", "message"} {
			if len(errs.FieldErrors(field)) != 1 {
				t.Errorf("expected one error for %s, got %v", field, errs)
			}
		}
	})
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1760000000123", 1760000000123, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseCursor(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCursor(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCursor(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "bonjour", "bonjour"},
		{"with null byte", "bon\x00jour", "bonjour"},
		{"with control char", "bon\x01jour", "bon jour"},
		{"preserves newline", "bon\njour", "bon\njour"},
		{"trims whitespace", "  bonjour  ", "bonjour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.expected {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizePhoneNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+221781362728", "+221781362728"},
		{"+221 78 136 27 28", "+221781362728"},
		{"78-136-27-28", "781362728"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizePhoneNumber(tt.input); got != tt.expected {
			t.Errorf("SanitizePhoneNumber(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
