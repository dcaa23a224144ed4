// Package gae implements pairauth storage on Google Cloud Datastore, for
// deployments on App Engine or Cloud Run. All entities live under one
// configurable namespace so several apps can share a project.
package gae
