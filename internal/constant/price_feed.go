package constant

const (
	PriceFeedStreamName        = "price_feed"
	PriceFeedStreamSubjectAll  = "price_feed.*"
	PriceFeedStreamSubjectTick = "price_feed.tick"

	PriceCacheKeyPrefix     = "price_feed:price:"
	PriceCacheChannelPrefix = "price_feed.prices."

	// websocket event names, inbound
	FeedEventLogin       = "login"
	FeedEventSubscribe   = "subscribe"
	FeedEventUnsubscribe = "unsubscribe"

	// websocket event names, outbound
	FeedEventSubscriptionsLoaded = "subscriptionsLoaded"
	FeedEventPriceUpdate         = "priceUpdate"

	GRPCHealthServiceName = "price-feed"
)
