package sensors

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/posture_guard/internal/posture"
)

func TestParseLine(t *testing.T) {
	s, err := ParseLine("9.81,0.12,-0.4", 77)
	require.NoError(t, err)
	assert.Equal(t, posture.Sample{Ax: 9.81, Ay: 0.12, Az: -0.4, TimestampMs: 77}, s)

	s, err = ParseLine("  1 2\t3 1700000000123 ", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), s.TimestampMs)
	assert.Equal(t, 3.0, s.Az)

	for _, bad := range []string{"", "# header", "1,2", "1,2,3,4,5", "a,b,c", "1,2,3,soon"} {
		_, err := ParseLine(bad, 0)
		assert.ErrorIs(t, err, ErrBadLine, bad)
	}
}

func TestLineSource_SkipsGarbage(t *testing.T) {
	src := NewLineSource(strings.NewReader("# ax,ay,az\nboot ok\n0,0,9.8,10\n\n9.8,0,0,20"))

	s, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, posture.Sample{Az: 9.8, TimestampMs: 10}, s)

	// The final line has no newline but is still delivered.
	s, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, posture.Sample{Ax: 9.8, TimestampMs: 20}, s)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestMockSource(t *testing.T) {
	_, err := NewMockSource("upside-down", nil)
	assert.Error(t, err)

	base := time.UnixMilli(1_000_000)
	now := base
	src, err := NewMockSource(ScenarioSide, func() time.Time { return now })
	require.NoError(t, err)

	now = base.Add(250 * time.Millisecond)
	s, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), s.TimestampMs)
	assert.Greater(t, s.Ax, 9.0)
}

// classifyScenario runs a scenario through the geometric rule once the
// filter has settled.
func classifyScenario(scenario string, at time.Duration) bool {
	f := posture.NewFilter(posture.DefaultTuning())
	c := posture.NewClassifier(posture.DefaultTuning())
	var est posture.Estimate
	for i := 0; i < 60; i++ {
		a := MockAcceleration(scenario, at)
		est, _ = f.Update(posture.Sample{Ax: a.X, Ay: a.Y, Az: a.Z})
	}
	return c.Classify(est, est.Normal.X, est.Normal.Y, false, nil).Candidate
}

func TestMockAcceleration_Scenarios(t *testing.T) {
	assert.True(t, classifyScenario(ScenarioSide, 0))
	assert.False(t, classifyScenario(ScenarioFlat, 0))
	assert.True(t, classifyScenario(ScenarioAlternate, 5*time.Second))
	assert.False(t, classifyScenario(ScenarioAlternate, 25*time.Second))
	assert.False(t, classifyScenario(ScenarioWalk, 300*time.Millisecond))

	calm := MockAcceleration(ScenarioWalk, 300*time.Millisecond).Norm()
	step := MockAcceleration(ScenarioWalk, 0).Norm()
	assert.Greater(t, step-calm, 2.0)
}

type scriptedSource struct {
	samples []posture.Sample
	errs    []error
}

func (s *scriptedSource) Next() (posture.Sample, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return posture.Sample{}, err
		}
	}
	if len(s.samples) == 0 {
		return posture.Sample{}, io.EOF
	}
	next := s.samples[0]
	s.samples = s.samples[1:]
	return next, nil
}

func TestStream_ForwardsUntilEOF(t *testing.T) {
	src := &scriptedSource{
		samples: []posture.Sample{{Az: 9.8, TimestampMs: 1}, {Az: 9.8, TimestampMs: 2}},
		errs:    []error{errors.New("crc"), nil, nil},
	}
	out := make(chan posture.Sample, 4)
	require.NoError(t, Stream(context.Background(), src, 0, out, nil))
	close(out)

	var got []int64
	for s := range out {
		got = append(got, s.TimestampMs)
	}
	assert.Equal(t, []int64{1, 2}, got)
}

func TestStream_StopsOnContext(t *testing.T) {
	src, err := NewMockSource(ScenarioFlat, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := make(chan posture.Sample, 1000)
	err = Stream(ctx, src, 5*time.Millisecond, out, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, out)
}

func TestNewMPU9250Source_UnknownCSPin(t *testing.T) {
	src, err := NewMPU9250Source("/dev/spidev-missing", "NO_SUCH_PIN", 0, nil)
	assert.Error(t, err)
	assert.Nil(t, src)
}
