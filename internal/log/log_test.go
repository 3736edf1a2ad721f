package log

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LogTestSuite struct {
	suite.Suite
}

func (s *LogTestSuite) TearDownTest() {
	level.SetLevel(zapcore.InfoLevel)
}

func (s *LogTestSuite) TestSetLevel() {
	s.Require().NoError(SetLevel("debug"))
	s.True(Logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	s.Require().NoError(SetLevel("error"))
	s.False(Logger.Desugar().Core().Enabled(zapcore.WarnLevel))
}

func (s *LogTestSuite) TestSetLevelRejectsUnknown() {
	err := SetLevel("loud")
	s.Require().Error(err)
	s.Contains(err.Error(), `invalid log level "loud"`)
	s.Equal(zapcore.InfoLevel, level.Level())
}

func TestLogTestSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}
