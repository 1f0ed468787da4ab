// Package httputil provides HTTP utilities for the BusWeaver API client.
//
// # Overview
//
//   - [Retry]: Automatic retry with exponential backoff
//   - [RetryableStatus]: Classifies transient HTTP status codes
//
// # Retry
//
// [Retry] reattempts an operation for transient failures:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Only errors wrapped in [RetryableError] are retried; everything else
// fails fast. The delay between attempts doubles up to the policy cap:
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy, func() error {
//	    resp, err := http.Get(url)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    if httputil.RetryableStatus(resp.StatusCode) {
//	        return &httputil.RetryableError{Err: fmt.Errorf("status %d", resp.StatusCode)}
//	    }
//	    return nil
//	})
//
// [RetryWithBackoff] applies [DefaultPolicy]: 3 attempts, 1 second base
// delay, 10 second cap.
package httputil
