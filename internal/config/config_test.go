package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/codahale/gubbins/assert"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string {
		return vars[k]
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "darwin", BackendKeychain, Default("darwin").Store.Backend)
	assert.Equal(t, "linux", BackendKeyring, Default("linux").Store.Backend)
}

func TestPath(t *testing.T) {
	t.Parallel()

	path, explicit := Path(env(map[string]string{PathEnv: "/etc/kca.yaml", "XDG_CONFIG_HOME": "/xdg"}))
	assert.Equal(t, "explicit path", "/etc/kca.yaml", path)
	assert.Equal(t, "explicit", true, explicit)

	path, explicit = Path(env(map[string]string{"XDG_CONFIG_HOME": "/xdg", "HOME": "/home/u"}))
	assert.Equal(t, "xdg path", "/xdg/keychain-access/config.yaml", path)
	assert.Equal(t, "xdg", false, explicit)

	path, _ = Path(env(map[string]string{"HOME": "/home/u"}))
	assert.Equal(t, "home path", "/home/u/.config/keychain-access/config.yaml", path)
}

func TestLoadMissingDefault(t *testing.T) {
	t.Parallel()

	home := t.TempDir()

	config, err := Load(env(map[string]string{"HOME": home}))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "backend", Default(runtime.GOOS).Store.Backend, config.Store.Backend)
	assert.Equal(t, "local dir", filepath.Join(home, ".local/share/keychain-access/keys"), config.Store.Local.Dir)
	assert.Equal(t, "service", DefaultService, config.Store.Keyring.Service)
}

func TestLoadMissingExplicit(t *testing.T) {
	t.Parallel()

	_, err := Load(env(map[string]string{PathEnv: filepath.Join(t.TempDir(), "nope.yaml")}))
	if err == nil {
		t.Fatal("should have failed")
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(`
store:
  backend: awskms
  awskms:
    region: us-west-2
    profile: signing
  local:
    dir: ~/keys
log:
  level: warn
`), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(env(map[string]string{PathEnv: path, "HOME": "/home/u", LogEnv: "debug"}))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "config", Config{
		Store: StoreConfig{
			Backend: BackendAWSKMS,
			Keyring: KeyringConfig{
				Service: DefaultService,
				FileDir: "/home/u/.local/share/keychain-access/keyring",
			},
			Local:  LocalConfig{Dir: "/home/u/keys"},
			AWSKMS: AWSKMSConfig{Region: "us-west-2", Profile: "signing"},
		},
		Log: LogConfig{Level: "debug"},
	}, config)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	for _, contents := range []string{
		"store: [",
		"store:\n  backend: floppy\n",
		"store:\n  backend: keyring\n  keyring:\n    service: \"\"\n",
	} {
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(env(map[string]string{PathEnv: path})); err == nil {
			t.Errorf("%q should have failed", contents)
		}
	}
}

func TestLoadBackendOverride(t *testing.T) {
	t.Parallel()

	config, err := Load(env(map[string]string{"HOME": t.TempDir(), BackendEnv: BackendLocal}))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "backend", BackendLocal, config.Store.Backend)
}
