//go:build darwin

package ui

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#include <stdlib.h>
#import <Cocoa/Cocoa.h>

// pickDirectory runs an NSOpenPanel for one directory on the main queue and
// blocks the calling thread until it closes. NULL means cancelled.
const char* pickDirectory(const char* message, const char* prompt) {
    __block const char* result = NULL;
    NSString* msg = [NSString stringWithUTF8String:message];
    NSString* btn = [NSString stringWithUTF8String:prompt];

    dispatch_semaphore_t done = dispatch_semaphore_create(0);
    dispatch_async(dispatch_get_main_queue(), ^{
        @autoreleasepool {
            [NSApp activateIgnoringOtherApps:YES];

            NSOpenPanel* panel = [NSOpenPanel openPanel];
            panel.canChooseFiles = NO;
            panel.canChooseDirectories = YES;
            panel.canCreateDirectories = YES;
            panel.allowsMultipleSelection = NO;
            panel.message = msg;
            panel.prompt = btn;
            panel.level = NSFloatingWindowLevel;

            if ([panel runModal] == NSModalResponseOK) {
                NSURL* dir = panel.URLs.firstObject;
                if (dir != nil) {
                    result = strdup(dir.path.UTF8String);
                }
            }
        }
        dispatch_semaphore_signal(done);
    });
    dispatch_semaphore_wait(done, DISPATCH_TIME_FOREVER);

    return result;
}
*/
import "C"

import "unsafe"

const canPickFolder = true

// PickExportDir asks for a directory to export into. ok is false when the
// dialog was cancelled. Must not be called from the UI thread.
func PickExportDir() (dir string, ok bool) {
	msg := C.CString("Choose where to export captures")
	defer C.free(unsafe.Pointer(msg))
	prompt := C.CString("Export")
	defer C.free(unsafe.Pointer(prompt))

	cdir := C.pickDirectory(msg, prompt)
	if cdir == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cdir))
	return C.GoString(cdir), true
}
