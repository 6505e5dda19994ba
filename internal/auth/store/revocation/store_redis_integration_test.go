//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chariblock/internal/auth/store/revocation"
	"chariblock/pkg/testutil/containers"
)

type RedisTRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisTRL
}

func TestRedisTRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTRLSuite))
}

func (s *RedisTRLSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.trl = revocation.NewRedisTRL(s.redis.Client.Client)
	s.Require().NoError(s.redis.Client.Health(context.Background()))
}

func (s *RedisTRLSuite) SetupTest() {
	s.Require().NoError(s.redis.Reset(context.Background()))
}

func (s *RedisTRLSuite) TestRevokeAndCheck() {
	ctx := context.Background()

	revoked, err := s.trl.IsTokenRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = s.trl.IsTokenRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	ttl, err := s.redis.Client.TTL(ctx, "trl:jti:jti-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisTRLSuite) TestEntriesExpire() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "short", 50*time.Millisecond))
	s.Eventually(func() bool {
		revoked, err := s.trl.IsTokenRevoked(ctx, "short")
		return err == nil && !revoked
	}, 2*time.Second, 25*time.Millisecond)
}
