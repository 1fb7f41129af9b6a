package shell

import "os"

// Environment reads process configuration from environment variables.
type Environment struct{}

func NewEnvironment() *Environment {
	return &Environment{}
}

func (this *Environment) LookupEnv(key string) (value string, set bool) {
	return os.LookupEnv(key)
}

// LookupDefault returns the variable's value, or fallback when unset.
// A variable explicitly set to empty wins over the fallback.
func (this *Environment) LookupDefault(key, fallback string) string {
	if value, set := this.LookupEnv(key); set {
		return value
	}
	return fallback
}
