package credentials_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"gallery/internal/credentials"
	"gallery/internal/testsupport"
)

func TestBasicAuthEncodesUserAndPassword(t *testing.T) {
	creds := credentials.Credentials{Username: "ana", Password: "p:ss"}
	header := creds.BasicAuth()
	if !strings.HasPrefix(header, "Basic ") {
		t.Fatalf("expected Basic scheme, got %q", header)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if string(decoded) != "ana:p:ss" {
		t.Fatalf("unexpected decoded token %q", decoded)
	}
}

func TestComplete(t *testing.T) {
	cases := []struct {
		creds credentials.Credentials
		want  bool
	}{
		{credentials.Credentials{Username: "a", Password: "b"}, true},
		{credentials.Credentials{Username: "", Password: "b"}, false},
		{credentials.Credentials{Username: "  ", Password: "b"}, false},
		{credentials.Credentials{Username: "a", Password: ""}, false},
	}
	for _, tc := range cases {
		if got := tc.creds.Complete(); got != tc.want {
			t.Fatalf("Complete(%+v) = %v, want %v", tc.creds, got, tc.want)
		}
	}
}

func TestRememberAndForget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	creds := credentials.NewStore(st)
	ctx := context.Background()

	if _, ok, err := creds.Load(ctx); err != nil || ok {
		t.Fatalf("expected nothing stored, got ok=%v err=%v", ok, err)
	}

	want := credentials.Credentials{Username: "ana", Password: "secret"}
	if err := creds.Save(ctx, want, true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, ok, err := st.Get(ctx, credentials.StorageKey)
	if err != nil || !ok {
		t.Fatalf("expected raw value under storage key, ok=%v err=%v", ok, err)
	}
	if raw != `{"username":"ana","password":"secret"}` {
		t.Fatalf("unexpected stored shape %q", raw)
	}
	got, ok, err := creds.Load(ctx)
	if err != nil || !ok || got != want {
		t.Fatalf("Load = %+v ok=%v err=%v", got, ok, err)
	}

	if err := creds.Save(ctx, want, false); err != nil {
		t.Fatalf("Save without remember failed: %v", err)
	}
	if _, ok, _ := creds.Load(ctx); ok {
		t.Fatal("expected credentials cleared when remember is disabled")
	}
}

func TestLoadRejectsCorruptValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := st.Set(ctx, credentials.StorageKey, "not json"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, _, err := credentials.NewStore(st).Load(ctx); err == nil {
		t.Fatal("expected decode error")
	}
}
