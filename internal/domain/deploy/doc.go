// Package deploy publishes assembled documents under permanent public
// slugs.
//
// Documents and deployment metadata are written to an ArtifactStore
// (memory or an S3-compatible bucket via MinIO), so a restarted server
// can still serve every deployment. Browsers that render a deployment
// report their terminal signal back and the Manager folds it into the
// deployment status.
package deploy
