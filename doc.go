// Package trackdlo implements the non-rigid point-set registration engine
// that tracks a deformable linear object (a rope, wire or cable) through an
// RGB-D camera stream.
//
// The package owns the per-frame orchestration (Tracker); the heavy lifting
// — the EM registration engine, the occlusion-aware pre-processing pass and
// marker-chain ordering — lives in the registration, preprocess and markers
// sub-packages. Image acquisition, segmentation and visualisation
// publishing are external collaborators and are not implemented here; see
// cmd/trackdlo-node for the seam at which they attach.
package trackdlo
