package store

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

const testDir = "/data"

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	return New(fsys, testDir, logging.Nop()), fsys
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	want := BrokerConfig{Server: "10.0.0.5", Port: "8883"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := s.Load(); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s, _ := newTestStore(t)
	got := s.Load()
	if got.Server != "192.168.178.79" || got.Port != "1883" {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoadCreatesDataDir(t *testing.T) {
	s, fsys := newTestStore(t)
	s.Load()
	ok, err := afero.DirExists(fsys, testDir)
	if err != nil || !ok {
		t.Errorf("data dir not created: ok=%v err=%v", ok, err)
	}
}

func TestLoadDefaultsOnMalformedJSON(t *testing.T) {
	s, fsys := newTestStore(t)
	afero.WriteFile(fsys, testDir+"/"+FileName, []byte("{not json"), 0o644)
	if got := s.Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoadDefaultsOnOverCapacity(t *testing.T) {
	s, fsys := newTestStore(t)
	body := `{"mqttServer":"` + strings.Repeat("a", 41) + `","mqttPort":"1883"}`
	afero.WriteFile(fsys, testDir+"/"+FileName, []byte(body), 0o644)
	if got := s.Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	tests := []struct {
		name string
		body string
		want BrokerConfig
	}{
		{"missing port", `{"mqttServer":"broker.lan"}`, BrokerConfig{Server: "broker.lan", Port: DefaultPort}},
		{"missing server", `{"mqttPort":"8883"}`, BrokerConfig{Server: DefaultServer, Port: "8883"}},
		{"empty port", `{"mqttServer":"broker.lan","mqttPort":""}`, BrokerConfig{Server: "broker.lan", Port: DefaultPort}},
		{"empty object", `{}`, Default()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fsys := newTestStore(t)
			afero.WriteFile(fsys, testDir+"/"+FileName, []byte(tt.body), 0o644)
			if got := s.Load(); got != tt.want {
				t.Errorf("Load() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadReadOnlyExistingDir(t *testing.T) {
	base := afero.NewMemMapFs()
	afero.WriteFile(base, testDir+"/"+FileName, []byte(`{"mqttServer":"ro.lan","mqttPort":"1884"}`), 0o644)
	s := New(afero.NewReadOnlyFs(base), testDir, logging.Nop())

	want := BrokerConfig{Server: "ro.lan", Port: "1884"}
	if got := s.Load(); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadUnmountableFallsBackToDefaults(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), testDir, logging.Nop())
	if got := s.Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

// flakyMkdirFs fails the first MkdirAll so the format path is taken.
type flakyMkdirFs struct {
	afero.Fs
	calls   int
	removed bool
}

func (f *flakyMkdirFs) MkdirAll(path string, perm os.FileMode) error {
	f.calls++
	if f.calls == 1 {
		return errors.New("corrupt")
	}
	return f.Fs.MkdirAll(path, perm)
}

func (f *flakyMkdirFs) RemoveAll(path string) error {
	f.removed = true
	return f.Fs.RemoveAll(path)
}

func TestLoadFormatsOnMountFailure(t *testing.T) {
	fsys := &flakyMkdirFs{Fs: afero.NewMemMapFs()}
	s := New(fsys, testDir, logging.Nop())

	if got := s.Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
	if !fsys.removed {
		t.Error("expected RemoveAll during format")
	}
	if fsys.calls != 2 {
		t.Errorf("MkdirAll calls = %d, want 2", fsys.calls)
	}
}

func TestSaveFailureReturnsError(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), testDir, logging.Nop())
	if err := s.Save(Default()); err == nil {
		t.Error("expected error writing to read-only fs")
	}
}

func TestSaveRejectsOverCapacity(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Save(BrokerConfig{Server: "x", Port: "1234567"})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("err = %v, want ErrFieldTooLong", err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s, fsys := newTestStore(t)
	if err := s.Save(BrokerConfig{Server: "a", Port: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if ok, _ := afero.Exists(fsys, testDir+"/"+FileName); ok {
		t.Error("config file still exists")
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
	if got := s.Load(); got != Default() {
		t.Errorf("Load() after Clear = %+v, want defaults", got)
	}
}

func TestValidateLimits(t *testing.T) {
	tests := []struct {
		name string
		cfg  BrokerConfig
		ok   bool
	}{
		{"defaults", Default(), true},
		{"server at limit", BrokerConfig{Server: strings.Repeat("s", 40), Port: "1"}, true},
		{"server over", BrokerConfig{Server: strings.Repeat("s", 41), Port: "1"}, false},
		{"port at limit", BrokerConfig{Server: "s", Port: "123456"}, true},
		{"port over", BrokerConfig{Server: "s", Port: "1234567"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	if got := Default().Address(); got != "tcp://192.168.178.79:1883" {
		t.Errorf("Address() = %q", got)
	}
}

func TestProvision(t *testing.T) {
	cfg := Default()

	changed, err := Provision(&cfg, "", "")
	if err != nil || changed {
		t.Errorf("empty overrides: changed=%v err=%v", changed, err)
	}

	changed, err = Provision(&cfg, "broker.lan", "")
	if err != nil || !changed {
		t.Fatalf("server override: changed=%v err=%v", changed, err)
	}
	if cfg.Server != "broker.lan" || cfg.Port != "1883" {
		t.Errorf("cfg = %+v", cfg)
	}

	changed, err = Provision(&cfg, "broker.lan", "1883")
	if err != nil || changed {
		t.Errorf("same values: changed=%v err=%v", changed, err)
	}

	changed, err = Provision(&cfg, "", "99999999")
	if !errors.Is(err, ErrFieldTooLong) || changed {
		t.Errorf("over capacity: changed=%v err=%v", changed, err)
	}
	if cfg.Port != "1883" {
		t.Errorf("rejected override modified cfg: %+v", cfg)
	}
}
