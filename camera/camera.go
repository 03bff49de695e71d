// Package camera implements the pinhole projection used to map tracked
// nodes and guide nodes into pixel space, shared by pre-processing's
// mask-visibility test and by the overlay renderer.
package camera

// Intrinsics is a simplified pinhole camera model: a 3×4 projection matrix
// with no skew and principal point (Cx, Cy). The full 3×4 matrix used by
// spec §6 ("fixed 3×4 intrinsic projection matrix P_cam") reduces to this
// because the rows below the focal terms are always [0,0,1,0] for the
// cameras this system targets (no extrinsic baked in — camera frame).
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// Project maps a 3D point in camera-frame coordinates to a pixel (u, v),
// clipped to [0, width-1] x [0, height-1] and floored to integers, per
// spec §4.2 "project via the camera intrinsics to pixel (u,v) (clip to
// image bounds, integer floor)". ok is false when the point is behind the
// camera (z<=0), in which case (u,v) are not meaningful.
func (in Intrinsics) Project(x, y, z float64, width, height int) (u, v int, ok bool) {
	if z <= 0 {
		return 0, 0, false
	}
	uf := in.Fx*x/z + in.Cx
	vf := in.Fy*y/z + in.Cy
	u = int(uf)
	v = int(vf)
	if u < 0 {
		u = 0
	}
	if u >= width {
		u = width - 1
	}
	if v < 0 {
		v = 0
	}
	if v >= height {
		v = height - 1
	}
	return u, v, true
}

// StaticExtrinsic is a fixed camera-to-world transform, describing the
// static TF a deployment periodically re-broadcasts from a world frame to
// the camera's optical frame. The core registration engine never consumes
// this; it exists purely as the interface value an external TF-broadcast
// collaborator would publish.
type StaticExtrinsic struct {
	// Translation is the camera origin in the world frame, metres.
	Translation [3]float64
	// Quaternion is (x, y, z, w).
	Quaternion [4]float64
	ParentFrame, ChildFrame string
}
