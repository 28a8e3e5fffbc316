package security

import (
	"errors"
	"strings"
	"testing"
)

const testSealerSecret = "0123456789abcdef0123456789abcdef"

type sealedThing struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func TestSealer_RoundTripWithAAD(t *testing.T) {
	s, err := NewSealer(testSealerSecret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	in := sealedThing{Email: "a@x.com", Password: "hunter2-hunter2"}
	data, err := s.Seal(in, []byte("a@x.com"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatal("sealed output contains plaintext")
	}
	var out sealedThing
	if err := s.Open(data, []byte("a@x.com"), &out); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if out != in {
		t.Errorf("Open = %+v, want %+v", out, in)
	}
}

func TestSealer_RejectsWrongAADAndTampering(t *testing.T) {
	s, _ := NewSealer(testSealerSecret)
	data, err := s.Seal(sealedThing{Email: "a@x.com"}, []byte("a@x.com"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	var out sealedThing
	if err := s.Open(data, []byte("b@x.com"), &out); !errors.Is(err, ErrSealed) {
		t.Errorf("Open with wrong aad err = %v, want ErrSealed", err)
	}
	data[len(data)-1] ^= 0xff
	if err := s.Open(data, []byte("a@x.com"), &out); !errors.Is(err, ErrSealed) {
		t.Errorf("Open tampered err = %v, want ErrSealed", err)
	}
	if err := s.Open([]byte{1, 2}, nil, &out); !errors.Is(err, ErrSealed) {
		t.Errorf("Open short err = %v, want ErrSealed", err)
	}
}

func TestSealer_DifferentSecretsCannotOpen(t *testing.T) {
	a, _ := NewSealer(testSealerSecret)
	b, _ := NewSealer(strings.Repeat("z", 32))
	data, _ := a.Seal(sealedThing{Email: "a@x.com"}, nil)
	var out sealedThing
	if err := b.Open(data, nil, &out); !errors.Is(err, ErrSealed) {
		t.Errorf("Open with other secret err = %v, want ErrSealed", err)
	}
}

func TestNewSealer_WeakSecret(t *testing.T) {
	if _, err := NewSealer("short"); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewSealer(short) err = %v, want ErrWeakSecret", err)
	}
}
