package errors

import (
	"fmt"
	"io/fs"
	"testing"
)

func TestMapperError_Error(t *testing.T) {
	err := NewDuplicateName("price")

	expected := `DUPLICATE_NAME: rule "price" already exists`
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if err.Details["name"] != "price" {
		t.Errorf("Details[name] = %v, want %q", err.Details["name"], "price")
	}
}

func TestMapperError_WrapsCause(t *testing.T) {
	err := NewDirectoryCreationFailed("/root/out", fs.ErrPermission)

	if !Is(err, ErrDirectoryCreationFailed) {
		t.Errorf("Is(err, ErrDirectoryCreationFailed) = false")
	}
	if err.Unwrap() != fs.ErrPermission {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), fs.ErrPermission)
	}
}

func TestIs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("decode library: %w", NewUnknownKind("colour"))

	if !Is(wrapped, ErrUnknownKind) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if Is(wrapped, ErrMalformedMetadata) {
		t.Error("Is matched the wrong code")
	}
	if CodeOf(wrapped) != ErrUnknownKind {
		t.Errorf("CodeOf = %q, want %q", CodeOf(wrapped), ErrUnknownKind)
	}
}

func TestIs_NonMapperError(t *testing.T) {
	if Is(fmt.Errorf("plain"), ErrNotANumber) {
		t.Error("Is should be false for plain errors")
	}
	if Is(nil, ErrNotANumber) {
		t.Error("Is should be false for nil")
	}
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) should be empty")
	}
}

func TestNewMissingTemplateImage_Messages(t *testing.T) {
	empty := NewMissingTemplateImage("logo", "")
	if empty.Message != `rule "logo": template image is required` {
		t.Errorf("Message = %q", empty.Message)
	}

	absent := NewMissingTemplateImage("logo", "logo.png")
	if absent.Message != `rule "logo": template image "logo.png" does not exist` {
		t.Errorf("Message = %q", absent.Message)
	}
}
