package hyperliquid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedHandleMessageCachesMids(t *testing.T) {
	feed := NewFeed(false)

	feed.handleMessage([]byte(`{"channel":"allMids","data":{"mids":{"BTC":"50123.5","ETH":"3001.25","BAD":"zero","NEG":"-1"}}}`))

	btc, ok := feed.Mid("BTC")
	assert.True(t, ok)
	assert.Equal(t, 50123.5, btc)

	eth, ok := feed.Mid("ETH")
	assert.True(t, ok)
	assert.Equal(t, 3001.25, eth)

	_, ok = feed.Mid("BAD")
	assert.False(t, ok, "unparseable prices must not be cached")

	_, ok = feed.Mid("NEG")
	assert.False(t, ok, "non-positive prices must not be cached")
}

func TestFeedIgnoresOtherChannels(t *testing.T) {
	feed := NewFeed(false)

	feed.handleMessage([]byte(`{"channel":"subscriptionResponse","data":{}}`))
	feed.handleMessage([]byte(`not even json`))

	_, ok := feed.Mid("BTC")
	assert.False(t, ok)
}

func TestFeedMidRefusesStaleEntries(t *testing.T) {
	feed := NewFeed(false)

	feed.cacheMu.Lock()
	feed.mids["BTC"] = midEntry{price: 50000, updatedAt: time.Now().Add(-2 * feedStaleAfter)}
	feed.cacheMu.Unlock()

	_, ok := feed.Mid("BTC")
	assert.False(t, ok)
}

func TestFeedURLSelection(t *testing.T) {
	assert.Equal(t, MainnetWSURL, NewFeed(false).url)
	assert.Equal(t, TestnetWSURL, NewFeed(true).url)
}
