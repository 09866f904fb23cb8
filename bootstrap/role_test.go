package bootstrap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// clearRoleEnv scrubs every environment variable role() inspects so each
// test starts from a clean slate regardless of what ran (or is running)
// around it. t.Setenv already restores the prior value on cleanup, so an
// explicit Unsetenv here is enough to establish the "nothing set" baseline.
func clearRoleEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envIsInit, envStage, envInitPipe} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestRoleNormalWhenNothingSet(t *testing.T) {
	clearRoleEnv(t)
	r, _ := role()
	assert.Equal(t, roleNormal, r)
}

func TestRoleInitWhenInitPipeAndIsInitBothSet(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv(envInitPipe, "3")
	t.Setenv(envIsInit, "1")
	r, _ := role()
	assert.Equal(t, roleInit, r, "spec §4.5: INITPIPE set + IS_INIT set must resume as INIT, not re-run the choreography")
}

func TestDispatchRoleInitSetsInitState(t *testing.T) {
	state.setInit(false)
	dispatch(roleInit, 0)
	assert.True(t, IsInitProcess(), "dispatching roleInit must mark the process as the container init")
}

func TestRoleStage0WhenInitPipeSet(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv(envInitPipe, "3")
	r, fd := role()
	assert.Equal(t, roleStage0, r)
	assert.Equal(t, 3, fd)
}

func TestRoleNormalWhenInitPipeNotInteger(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv(envInitPipe, "not-a-number")
	r, _ := role()
	assert.Equal(t, roleNormal, r, "a non-integer _KONTAINER_INITPIPE must be treated the same as unset")
}

func TestRoleNormalWhenIsInitSetButInitPipeIsNot(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv(envIsInit, "1")
	r, _ := role()
	assert.Equal(t, roleNormal, r, "_KONTAINER_IS_INIT alone, without a valid INITPIPE, must not grant INIT role")
}

func TestRoleStage1AndStage2FromEnvStage(t *testing.T) {
	clearRoleEnv(t)
	t.Setenv(envStage, "1")
	r, _ := role()
	assert.Equal(t, roleStage1, r)

	t.Setenv(envStage, "2")
	r, _ = role()
	assert.Equal(t, roleStage2, r)
}
