// Package graph fetches directory group memberships from Microsoft Graph.
// It walks the paginated transitiveMemberOf collection for a user, keeping
// only group-type directory objects with a display name, and returns the
// complete de-duplicated membership or an error; a partial page is never
// presented as the full result.
package graph
