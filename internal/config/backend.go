package config

const appName = "roofcheck"

// ConfigBackend abstracts platform-specific config storage: the `defaults`
// domain on macOS, a JSON file under the XDG config home elsewhere.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
