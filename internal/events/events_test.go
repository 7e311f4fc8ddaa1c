package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/streamspace-dev/notify-push/internal/user"
)

func TestDecode_RoundTripsEveryKind(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
		want interface{}
	}{
		{
			name: "storage_update",
			raw:  `{"kind":"storage_update","payload":{"storage_id":"s1","path":"/a/b"}}`,
			kind: KindStorageUpdate,
			want: &StorageUpdate{StorageID: "s1", Path: "/a/b"},
		},
		{
			name: "activity",
			raw:  `{"kind":"activity","payload":{"user":"alice"}}`,
			kind: KindActivity,
			want: &Activity{User: user.ID("alice")},
		},
		{
			name: "custom",
			raw:  `{"kind":"custom","payload":{"user":"bob","message":"hi","body":"there"}}`,
			kind: KindCustom,
			want: &Custom{User: user.ID("bob"), Message: "hi", Body: "there"},
		},
		{
			name: "pre_auth",
			raw:  `{"kind":"pre_auth","payload":{"user":"carol","token":"tok"}}`,
			kind: KindPreAuth,
			want: &PreAuth{User: user.ID("carol"), Token: "tok"},
		},
		{
			name: "test_cookie",
			raw:  `{"kind":"test_cookie","payload":{"value":42}}`,
			kind: KindTestCookie,
			want: &TestCookie{Value: 42},
		},
		{
			name: "config",
			raw:  `{"kind":"config","payload":{"log_spec":"debug"}}`,
			kind: KindConfig,
			want: &Config{LogSpec: "debug"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, payload, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if kind != tc.kind {
				t.Fatalf("kind = %v, want %v", kind, tc.kind)
			}
			if diff := cmp.Diff(tc.want, payload); diff != "" {
				t.Errorf("decoded payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_UnknownKindFails(t *testing.T) {
	_, _, err := Decode([]byte(`{"kind":"not_a_real_kind","payload":{}}`))
	if err == nil {
		t.Fatal("expected an error for an unknown event kind")
	}
}
