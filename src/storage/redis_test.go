package storage_test

import (
	"context"
	"fmt"
	"os"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"quote-proxy/src/logger"
	"quote-proxy/src/models"
	"quote-proxy/src/storage"
)

// Runs against a real server when REDIS_ADDR is set, e.g. REDIS_ADDR=localhost:6379.
type redisSuite struct {
	addr string
	db   *storage.RedisDB
}

var _ = gc.Suite(&redisSuite{})

func (s *redisSuite) SetUpSuite(c *gc.C) {
	s.addr = os.Getenv("REDIS_ADDR")
	if s.addr == "" {
		c.Skip("REDIS_ADDR not set")
	}
}

func (s *redisSuite) SetUpTest(c *gc.C) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{
		DBType:      "redis",
		RedisAddr:   s.addr,
		RedisPrefix: fmt.Sprintf("quote-proxy-test-%d", time.Now().UnixNano()),
	}}
	db, err := storage.NewRedisDB(cfg, logger.NewLogger("ERROR", "RedisDB"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(db.Initialize(context.Background()), jc.ErrorIsNil)
	s.db = db
}

func (s *redisSuite) TearDownTest(c *gc.C) {
	if s.db == nil {
		return
	}
	ctx := context.Background()
	keys, err := s.db.Client.Keys(ctx, s.db.Prefix+":*").Result()
	c.Check(err, jc.ErrorIsNil)
	if len(keys) > 0 {
		c.Check(s.db.Client.Del(ctx, keys...).Err(), jc.ErrorIsNil)
	}
	c.Check(s.db.Close(), jc.ErrorIsNil)
	s.db = nil
}

func (s *redisSuite) TestUpsertIdempotent(c *gc.C)     { checkUpsertIdempotent(c, s.db) }
func (s *redisSuite) TestUpsertOverwrites(c *gc.C)     { checkUpsertOverwrites(c, s.db) }
func (s *redisSuite) TestNotFound(c *gc.C)             { checkNotFound(c, s.db) }
func (s *redisSuite) TestTriplesAreDistinct(c *gc.C)   { checkTriplesAreDistinct(c, s.db) }
func (s *redisSuite) TestPurgeKeepsRecentRows(c *gc.C) { checkPurgeKeepsRecentRows(c, s.db) }

func (s *redisSuite) TestPurgeKeepsConcurrentRefresh(c *gc.C) { checkPurgeKeepsConcurrentRefresh(c, s.db) }

func (s *redisSuite) TestKeysHaveNoTTL(c *gc.C) {
	ctx := context.Background()
	c.Assert(s.db.Upsert(ctx, quote("AAPL", "1d", "1m", `{}`, base)), jc.ErrorIsNil)

	keys, err := s.db.Client.Keys(ctx, s.db.Prefix+":quote:*").Result()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(keys, gc.HasLen, 1)
	ttl, err := s.db.Client.TTL(ctx, keys[0]).Result()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ttl, gc.Equals, time.Duration(-1))
}
