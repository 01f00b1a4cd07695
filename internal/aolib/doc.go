// Package aolib holds the array helpers shared by the sensor, guide-star and
// line-of-sight packages: pupil masks, resampling, binning, cropping, low
// order Zernike modes, photon budgets and subaperture selection.
//
// All images are square and stored row-major in []float64 or []complex128.
package aolib
