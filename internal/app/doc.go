// Package app builds the dependency graph behind one SDK instance: the local
// database, the key server client, the sigchain directory and every service.
package app
