package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		isValid bool
	}{
		{"slam", true},
		{"slam.registration", true},
		{"slam.*.icp", true},
		{"*", true},
		{"slam..registration", false},
		{"slam.registration.", false},
		{".slam", false},
		{"slam.**", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.pattern, func(t *testing.T) {
			t.Parallel()
			test.That(t, validatePattern(tc.pattern), test.ShouldEqual, tc.isValid)
		})
	}
}

func TestUpdateLoggerRegistry(t *testing.T) {
	registry := newRegistry()
	for _, name := range []string{"slam.registration", "slam.keypoints", "slam.map"} {
		registry.registerLogger(name, NewBlankLogger(name))
	}

	err := registry.Update([]LoggerPatternConfig{{Pattern: "slam.*", Level: "WARN"}}, NewBlankLogger("errors"))
	test.That(t, err, test.ShouldBeNil)

	for _, name := range []string{"slam.registration", "slam.keypoints", "slam.map"} {
		logger, ok := registry.loggerNamed(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	}
}

func TestGetOrRegister(t *testing.T) {
	registry := newRegistry()
	first := registry.getOrRegister("slam.registration", NewBlankLogger("slam.registration"))
	second := registry.getOrRegister("slam.registration", NewBlankLogger("slam.registration"))
	test.That(t, first, test.ShouldEqual, second)
}
