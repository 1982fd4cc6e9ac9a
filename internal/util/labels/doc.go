// Package labels provides consistent labeling for controller objects.
//
// All labels use the vnsync.io domain prefix. The namespace label scopes a
// controller inventory to one platform installation, and the local-id label
// maps a controller object back to the platform record it mirrors.
package labels
