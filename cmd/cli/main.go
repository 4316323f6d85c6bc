package main

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/linkdata/rate"
	"github.com/linkdata/stubdns"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

var flagServers = flag.String("server", "9.9.9.9:53", "comma separated name servers (ip or ip:port)")
var flagTimeout = flag.Int("timeout", 5, "individual query timeout in seconds")
var flagBudget = flag.Int("budget", 8, "max queries per resolve")
var flagType = flag.String("type", "", "resolve this record type instead of addresses")
var flagAll = flag.Bool("all", false, "print every address, not just the first")
var flag6 = flag.Bool("6", false, "prefer IPv6 addresses")
var flagDebug = flag.Bool("debug", false, "print debug output")
var flagRatelimit = flag.Int("ratelimit", 0, "rate limit queries, 0 means no limit")
var flagSearch = flag.String("search", "", "comma separated search domains")
var flagNdots = flag.Int("ndots", 1, "dots needed to try a name as absolute first")
var flagParallel = flag.Int("parallel", 4, "resolve this many names concurrently")

func parseServers(s string) (servers []netip.AddrPort, err error) {
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if ap, e := netip.ParseAddrPort(field); e == nil {
			servers = append(servers, ap)
			continue
		}
		addr, e := netip.ParseAddr(field)
		if e != nil {
			return nil, fmt.Errorf("invalid name server %q", field)
		}
		servers = append(servers, netip.AddrPortFrom(addr, 53))
	}
	return
}

func main() {
	flag.Parse()
	qnames := flag.Args()
	if len(qnames) == 0 {
		fmt.Println("missing one or more names to resolve")
		return
	}

	servers, err := parseServers(*flagServers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := stubdns.DefaultConfig()
	cfg.Servers = servers
	cfg.QueryTimeout = time.Second * time.Duration(*flagTimeout)
	cfg.MaxQueriesPerResolve = *flagBudget
	if *flag6 {
		cfg.AddressTypes = stubdns.IPv6Preferred
	}
	if *flagSearch != "" {
		cfg.SearchDomains = strings.Split(*flagSearch, ",")
		cfg.Ndots = *flagNdots
	}
	if *flagDebug {
		cfg.DebugLog = os.Stderr
	}
	if *flagRatelimit > 0 {
		maxrate := int32(*flagRatelimit) // #nosec G115
		cfg.RateLimiter = rate.NewTicker(nil, &maxrate).C
	}

	resolver, err := stubdns.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resolver.Close()

	ctx := context.Background()
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(*flagParallel)
	for _, qname := range qnames {
		qname := qname
		g.Go(func() error {
			lines, err := lookup(ctx, resolver, qname)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", qname, err)
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		})
	}
	err = g.Wait()

	if *flagDebug {
		cache := resolver.AnswerCache()
		fmt.Fprintf(os.Stderr, ";;; cache size %d, hit ratio %.2f%%\n", cache.Entries(), cache.HitRatio())
	}
	if err != nil {
		os.Exit(1)
	}
}

func lookup(ctx context.Context, resolver *stubdns.Resolver, qname string) (lines []string, err error) {
	if *flagType != "" {
		qtype, ok := dns.StringToType[strings.ToUpper(*flagType)]
		if !ok {
			return nil, fmt.Errorf("unknown record type %q", *flagType)
		}
		records, err := resolver.ResolveRecords(ctx, dns.Question{Name: qname, Qtype: qtype})
		if err != nil {
			return nil, err
		}
		for _, rr := range records {
			lines = append(lines, rr.String())
		}
		return lines, nil
	}
	if *flagAll {
		addrs, err := resolver.ResolveAll(ctx, qname)
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			lines = append(lines, fmt.Sprintf("%s\t%s", qname, addr))
		}
		return lines, nil
	}
	addr, err := resolver.Resolve(ctx, qname)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%s\t%s", qname, addr)}, nil
}
