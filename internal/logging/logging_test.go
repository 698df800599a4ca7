package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeromicro/go-zero/core/logx"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, uint32(logx.DebugLevel), ParseLevel("DEBUG"))
	assert.Equal(t, uint32(logx.ErrorLevel), ParseLevel(" error "))
	assert.Equal(t, uint32(logx.SevereLevel), ParseLevel("fatal"))
	assert.Equal(t, uint32(logx.InfoLevel), ParseLevel("whatever"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate())

	assert.Error(t, Config{Mode: "syslog"}.Validate())
	assert.Error(t, Config{Level: "loud"}.Validate())
	assert.Error(t, Config{Encoding: "xml"}.Validate())
}
