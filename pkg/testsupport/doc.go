// Package testsupport provides fakes shared by the package tests: a manual clock with
// timers, an in-memory location history, a scripted fetcher whose calls resolve on
// demand, a zap test logger and fixture loading.
package testsupport
