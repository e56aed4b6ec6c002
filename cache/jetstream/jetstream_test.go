package jetstream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcNats "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitabwire/langpack/cache/jetstream"
)

const natsImage = "nats:latest"

type JetstreamSuite struct {
	suite.Suite
	url string
}

func TestJetstreamSuite(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(JetstreamSuite))
}

func (s *JetstreamSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcNats.Run(ctx, natsImage,
		testcontainers.WithCmdArgs("--js"),
		testcontainers.WithWaitStrategy(wait.ForLog("Server is ready")),
	)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	s.url, err = container.ConnectionString(ctx)
	s.Require().NoError(err)
}

func (s *JetstreamSuite) TestOperations() {
	ctx := context.Background()

	c, err := jetstream.New(ctx, s.url, "packs", time.Hour)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })

	// A second client binds to the bucket the first one created.
	again, err := jetstream.New(ctx, s.url, "packs", time.Hour)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = again.Close() })

	testCases := []struct {
		name string
		run  func()
	}{
		{
			name: "set get delete",
			run: func() {
				s.Require().NoError(c.Set(ctx, "Localization/en", []byte{1, 0, 0, 0}, 0))
				val, found, getErr := again.Get(ctx, "Localization/en")
				s.Require().NoError(getErr)
				s.True(found)
				s.Equal([]byte{1, 0, 0, 0}, val)

				s.Require().NoError(c.Delete(ctx, "Localization/en"))
				_, found, getErr = c.Get(ctx, "Localization/en")
				s.Require().NoError(getErr)
				s.False(found)
			},
		},
		{
			name: "delete missing key",
			run: func() {
				s.NoError(c.Delete(ctx, "Localization/absent"))
			},
		},
		{
			name: "flush",
			run: func() {
				s.Require().NoError(c.Set(ctx, "Localization/meta", []byte("m"), 0))
				s.Require().NoError(c.Set(ctx, "Localization/fr", []byte("f"), 0))
				s.Require().NoError(c.Flush(ctx))

				_, found, _ := c.Get(ctx, "Localization/meta")
				s.False(found)
				_, found, _ = c.Get(ctx, "Localization/fr")
				s.False(found)
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, tc.run)
	}
}
