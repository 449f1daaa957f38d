// Package evdev reads multitouch contacts from a Linux input device node
// (/dev/input/eventN). Both type B slot devices and single touch devices
// reporting ABS_X/ABS_Y with BTN_TOUCH are understood.
//
// The backend is registered as "evdev" on Linux only.
package evdev
