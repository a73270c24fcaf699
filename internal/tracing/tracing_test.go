package tracing_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/cmdpool/internal/model"
	"github.com/slok/cmdpool/internal/tracing"
)

func TestSetup(t *testing.T) {
	tests := map[string]struct {
		config   tracing.Config
		expErr   error
		expSpans bool
	}{
		"No exporter should not trace.": {
			config: tracing.Config{},
		},
		"Stdout exporter should write the spans.": {
			config:   tracing.Config{Exporter: tracing.ExporterStdout, SampleRatio: 1},
			expSpans: true,
		},
		"Zero sample ratio should not write spans.": {
			config: tracing.Config{Exporter: tracing.ExporterStdout, SampleRatio: 0},
		},
		"An invalid sample ratio should fail.": {
			config: tracing.Config{Exporter: tracing.ExporterStdout, SampleRatio: 2},
			expErr: model.ErrNotValid,
		},
		"An unknown exporter should fail.": {
			config: tracing.Config{Exporter: "carrier-pigeon"},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			var out bytes.Buffer
			test.config.Out = &out

			tp, shutdown, err := tracing.Setup(ctx, test.config)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)

			_, span := tp.Tracer("test").Start(ctx, "test-span")
			span.End()
			require.NoError(shutdown(ctx))

			if test.expSpans {
				assert.Contains(out.String(), "test-span")
			} else {
				assert.Empty(out.String())
			}
		})
	}
}
