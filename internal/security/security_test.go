package security

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	apperrors "mt5-bridge/internal/errors"
)

func TestAccessController(t *testing.T) {
	ctx := context.Background()
	ac := NewAccessController(true, zerolog.Nop())

	if err := ac.CheckPermission(ctx, OpRead); err != nil {
		t.Errorf("read blocked: %v", err)
	}
	for _, op := range WriteOperations() {
		err := ac.CheckPermission(ctx, op)
		if !errors.Is(err, apperrors.ErrReadOnlyMode) {
			t.Errorf("%s: err = %v", op, err)
		}
		var ro *ReadOnlyError
		if !errors.As(err, &ro) || ro.Operation != op {
			t.Errorf("%s: not a ReadOnlyError: %v", op, err)
		}
	}

	ac.SetReadOnly(false)
	if err := ac.CheckPermission(ctx, OpPlaceOrder); err != nil {
		t.Errorf("trading enabled but blocked: %v", err)
	}

	var none *AccessController
	if err := none.CheckPermission(ctx, OpPlaceOrder); err != nil {
		t.Errorf("nil controller blocked: %v", err)
	}
}

func TestMustCheckPermissionPanics(t *testing.T) {
	ac := NewAccessController(true, zerolog.Nop())
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	ac.MustCheckPermission(context.Background(), OpClosePosition)
}

func TestOperationDescription(t *testing.T) {
	if OperationDescription(OpCancelOrder) != "Cancel a pending order" {
		t.Errorf("description = %q", OperationDescription(OpCancelOrder))
	}
	if IsWriteOperation(OpRead) || !IsWriteOperation(OpModifyConfig) {
		t.Error("write classification wrong")
	}
}

func TestInputValidator(t *testing.T) {
	v := NewInputValidator(true)

	symbols := map[string]bool{
		"EURUSD":    true,
		"EURUSD.m":  true,
		"#AAPL":     true,
		"US30-cash": true,
		"":          false,
		"EUR USD":   false,
		"EUR;rm":    false,
	}
	for s, ok := range symbols {
		if err := v.ValidateSymbol(s); (err == nil) != ok {
			t.Errorf("ValidateSymbol(%q) = %v", s, err)
		}
	}

	groups := map[string]bool{
		"*USD*":         true,
		"*USD*,!*JPY*":  true,
		"EUR*, GBP*":    true,
		"":              false,
		"*USD*;DROP":    false,
	}
	for g, ok := range groups {
		if err := v.ValidateGroup(g); (err == nil) != ok {
			t.Errorf("ValidateGroup(%q) = %v", g, err)
		}
	}

	if err := v.ValidateCurrency("USD"); err != nil {
		t.Error(err)
	}
	for _, c := range []string{"US", "USDT", "U5D"} {
		if err := v.ValidateCurrency(c); err == nil {
			t.Errorf("ValidateCurrency(%q) accepted", c)
		}
	}

	if ticket, err := v.ParseTicket(" 100001 "); err != nil || ticket != 100001 {
		t.Errorf("ParseTicket = %d, %v", ticket, err)
	}
	for _, raw := range []string{"abc", "0", "-5"} {
		_, err := v.ParseTicket(raw)
		if !errors.Is(err, apperrors.ErrInputValidation) {
			t.Errorf("ParseTicket(%q) = %v", raw, err)
		}
	}

	if err := v.ValidateComment(strings.Repeat("x", MaxCommentLength+1)); err == nil {
		t.Error("long comment accepted")
	}
	err := v.ValidateComment("scalp; rm -rf /")
	var se *apperrors.SecurityError
	if !errors.As(err, &se) || se.Operation != "comment" {
		t.Errorf("injection in strict mode: %v", err)
	}
	if !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("injection is not an input validation error: %v", err)
	}
	if err := NewInputValidator(false).ValidateComment("a|b"); err != nil {
		t.Errorf("lenient mode rejected: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	if got := SanitizeText("a\x00b\nc"); got != "abc" {
		t.Errorf("SanitizeText = %q", got)
	}
}

func TestMasking(t *testing.T) {
	masked := MaskSensitive("login failed password=hunter2secret for 5001000")
	if strings.Contains(masked, "hunter2") || !strings.Contains(masked, "password=****") {
		t.Errorf("MaskSensitive = %q", masked)
	}

	token := strings.Repeat("a1", 20)
	if got := MaskSensitive("key " + token); strings.Contains(got, token) {
		t.Errorf("long token not masked: %q", got)
	}
	if !ContainsSensitiveData("token: abcdefgh") || ContainsSensitiveData("EURUSD 0.1") {
		t.Error("ContainsSensitiveData misclassified")
	}

	tests := map[string]string{
		"":               "",
		"abc":            "***",
		"abcdefg":        "ab*****",
		"abcdefghijklmn": "abcd******klmn",
	}
	for in, want := range tests {
		if got := MaskCredential(in); got != want {
			t.Errorf("MaskCredential(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSecrets(t *testing.T) {
	settings := map[string]interface{}{
		"mt5": map[string]interface{}{
			"login":    5001000,
			"password": "hunter2",
			"server":   "Broker-Demo",
		},
		"token": "",
		"log":   map[string]interface{}{"level": "info"},
	}
	got := MaskSecrets(settings)
	mt5 := got["mt5"].(map[string]interface{})
	if mt5["password"] != "****" || mt5["server"] != "Broker-Demo" || mt5["login"] != 5001000 {
		t.Errorf("mt5 = %+v", mt5)
	}
	if got["token"] != "" {
		t.Errorf("empty secret = %v", got["token"])
	}
	if settings["mt5"].(map[string]interface{})["password"] != "hunter2" {
		t.Error("input modified")
	}
}

func TestSafeLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewSafeLogger(zerolog.New(&buf))

	log.Info().Str("password", "hunter2").Str("server", "Broker-Demo").Int64("login", 5001000).Msg("Connecting")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("password leaked: %s", out)
	}
	if !strings.Contains(out, `"server":"Broker-Demo"`) || !strings.Contains(out, `"login":5001000`) {
		t.Errorf("fields missing: %s", out)
	}
}

func TestSafeLoggerErrors(t *testing.T) {
	var buf bytes.Buffer
	log := NewSafeLogger(zerolog.New(&buf))

	log.Error().Err(errors.New("login rejected: password=hunter2secret")).Msg("Login failed")
	log.Error().Err(errors.New("IPC timeout")).Msg("Terminal call failed")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret in error leaked: %s", out)
	}
	if !strings.Contains(out, `"error":"IPC timeout"`) {
		t.Errorf("plain error changed: %s", out)
	}
}
