// Package service1 serves GET /service1/call-service2: it calls the
// downstream service through a dispatch.Dispatcher and returns
// "Liviu , Service1. " followed by the downstream body.
package service1
