package policy

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Environment variables backing EnvStore.
const (
	EnvDisable = "TABLESPY_DISABLE_TRUNCATION"
	EnvSkipAll = "TABLESPY_SKIP_ALL_TRUNCATIONS"
	EnvForce   = "TABLESPY_FORCE_TRUNCATION"
	EnvSkip    = "TABLESPY_SKIP_TRUNCATION"
)

// EnvStore keeps the policy in process environment variables, so a policy
// exported by a parent process (CI job, make target) applies to the tests.
type EnvStore struct{}

var _ port.PolicyStore = EnvStore{}

func NewEnvStore() EnvStore {
	return EnvStore{}
}

func (EnvStore) Policy(context.Context) (domain.TruncationPolicy, error) {
	disabled, err := envBool(EnvDisable)
	if err != nil {
		return domain.TruncationPolicy{}, err
	}
	skipAll, err := envBool(EnvSkipAll)
	if err != nil {
		return domain.TruncationPolicy{}, err
	}
	return domain.TruncationPolicy{
		Disabled: disabled,
		SkipAll:  skipAll,
		Forced:   domain.SplitList(os.Getenv(EnvForce)),
		Skipped:  domain.SplitList(os.Getenv(EnvSkip)),
	}, nil
}

func (EnvStore) SetPolicy(_ context.Context, p domain.TruncationPolicy) error {
	for _, err := range []error{
		setEnv(EnvDisable, boolValue(p.Disabled)),
		setEnv(EnvSkipAll, boolValue(p.SkipAll)),
		setEnv(EnvForce, strings.Join(p.Forced, ",")),
		setEnv(EnvSkip, strings.Join(p.Skipped, ",")),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func envBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return b, nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return ""
}

// setEnv unsets key when value is empty.
func setEnv(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}
