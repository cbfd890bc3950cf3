package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

func NewMemcached(server string, timeout time.Duration) *memcache.Client {
	client := memcache.New(server)
	client.Timeout = timeout
	client.MaxIdleConns = 16
	return client
}
