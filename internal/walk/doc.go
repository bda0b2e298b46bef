// Package walk traverses project trees for the documentation passes.
//
// Walker visits the input tree for the counting and file passes, filtering
// through an ignore.Matcher and never entering the output root. Tree and
// PostOrder drive the folder pass over the output tree: every directory is
// a node of a DAG, and a node is handed to the visitor only after all of
// its children have been visited.
package walk
