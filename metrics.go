package stubdns

import (
	"github.com/VictoriaMetrics/metrics"
)

var (
	metricQueriesUDP = metrics.NewCounter(`stubdns_queries_total{transport="udp"}`)
	metricQueriesTCP = metrics.NewCounter(`stubdns_queries_total{transport="tcp"}`)

	metricTimeouts        = metrics.NewCounter(`stubdns_query_timeouts_total`)
	metricOrphanResponses = metrics.NewCounter(`stubdns_orphan_responses_total`)
	metricDecodeErrors    = metrics.NewCounter(`stubdns_decode_errors_total`)
	metricTruncated       = metrics.NewCounter(`stubdns_truncated_responses_total`)

	metricAnswerHits   = metrics.NewCounter(`stubdns_answer_cache_hits_total`)
	metricAnswerMisses = metrics.NewCounter(`stubdns_answer_cache_misses_total`)
	metricHostsHits    = metrics.NewCounter(`stubdns_hosts_file_hits_total`)
)
