// Package httpclient is the outbound transport used to call resolved
// instances. It sends exactly one request per Do and sorts every failure
// into a timeout, a connection failure or a non-2xx status:
//
//	client, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
//	resp, err := client.Do(ctx, httpclient.Request{URL: "http://10.0.0.2:8081/service2/api/data"})
//	switch httpclient.CodeOf(err) {
//	case httpclient.ErrCodeTimeout:
//	    ...
//	}
//
// The trace context of ctx is injected into the outgoing headers.
package httpclient
