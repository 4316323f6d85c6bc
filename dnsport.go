package stubdns

// dnsPort is the port assumed for servers learned from referral glue
// (can be overridden for testing)
var dnsPort uint16 = 53
