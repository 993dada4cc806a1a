package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsGoVersion(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
}

func TestModuleVersionUnknownModuleReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ModuleVersion("this-module-does-not-exist/anywhere"))
}
