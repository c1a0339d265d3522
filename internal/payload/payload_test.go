package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// wirePayload mirrors what the ingestion backend parses.
type wirePayload struct {
	Type    string `json:"type"`
	Samples []struct {
		T     int64       `json:"t"`
		Gyro  sample.Vec3 `json:"gyro"`
		Accel sample.Vec3 `json:"accel"`
	} `json:"samples"`
	TriggerT *int64 `json:"trigger_t"`
}

func someSamples(n int) []sample.Sample {
	out := make([]sample.Sample, n)
	for i := range out {
		out[i] = sample.Sample{
			TimestampMS: int64(1000 + i),
			Seq:         uint32(i),
			Gyro:        sample.Vec3{X: 0.1 * float64(i), Y: -1.25, Z: 3},
			Accel:       sample.Vec3{X: 9.81, Y: 0.002, Z: float64(i)},
		}
	}
	return out
}

func TestBuildEventShape(t *testing.T) {
	b := NewBuilder(64 * 1024)
	samples := someSamples(3)

	raw, err := b.BuildEvent(samples, 1001)
	require.NoError(t, err)

	var p wirePayload
	require.NoError(t, json.Unmarshal(raw, &p), "payload is not valid JSON: %s", raw)
	require.Equal(t, "event", p.Type)
	require.Len(t, p.Samples, 3)
	require.NotNil(t, p.TriggerT)
	require.EqualValues(t, 1001, *p.TriggerT)
	require.EqualValues(t, 1000, p.Samples[0].T)
	require.InDelta(t, 9.81, p.Samples[0].Accel.X, 0.0005)
	require.InDelta(t, -1.25, p.Samples[0].Gyro.Y, 0.0005)
}

func TestBuildLiveShape(t *testing.T) {
	b := NewBuilder(16 * 1024)

	raw, err := b.BuildLive(someSamples(2))
	require.NoError(t, err)

	var p wirePayload
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Equal(t, "live", p.Type)
	require.Len(t, p.Samples, 2)
	require.Nil(t, p.TriggerT, "live payload must not carry trigger_t")
}

func TestBuildFailsWhenBufferTooSmall(t *testing.T) {
	// Roughly sized for 100 samples; 200 must not fit.
	b := NewBuilder(100 * 90)

	raw, err := b.BuildEvent(someSamples(200), 42)
	require.ErrorIs(t, err, ErrBufferFull)
	require.Nil(t, raw, "failed build must not hand out a partial payload")

	// The builder stays usable for a batch that fits.
	raw, err = b.BuildEvent(someSamples(10), 42)
	require.NoError(t, err)
	var p wirePayload
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Len(t, p.Samples, 10)
}

func TestBuilderReuseOverwrites(t *testing.T) {
	b := NewBuilder(4 * 1024)

	first, err := b.BuildLive(someSamples(1))
	require.NoError(t, err)
	firstCopy := string(first)

	_, err = b.BuildLive(someSamples(4))
	require.NoError(t, err)

	// The first slice aliases the shared buffer: stale after reuse.
	require.NotEqual(t, firstCopy, "", "sanity")
	var p wirePayload
	require.NoError(t, json.Unmarshal([]byte(firstCopy), &p))
	require.Len(t, p.Samples, 1)
}

func TestEmptyBatch(t *testing.T) {
	b := NewBuilder(256)
	raw, err := b.BuildLive(nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"live","samples":[]}`, string(raw))
}
